package archive

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const fixtureLog = "[12:00:00] [Server thread/INFO]: Starting minecraft server version 1.20.1\n" +
	"[12:00:05] [Server thread/INFO]: Done (4.932s)! For help, type \"help\"\n" +
	"[12:01:10] [Server thread/INFO]: <Steve> hello\n"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"latest.log.gz", Gzip},
		{"2024-01-01-1.log.GZ", Gzip},
		{"latest.log.zst", Zstd},
		{"latest.log", None},
		{"gz", None},
	}
	for _, tt := range tests {
		if got := FormatOf(tt.path); got != tt.want {
			t.Errorf("FormatOf(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestTrimSuffix(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/in/a.log.gz", "/in/a.log"},
		{"/in/a.log.zst", "/in/a.log"},
		{"/in/a.log", "/in/a.log"},
	}
	for _, tt := range tests {
		if got := TrimSuffix(tt.path); got != tt.want {
			t.Errorf("TrimSuffix(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDecode_Gzip(t *testing.T) {
	var out bytes.Buffer
	n, err := Decode(bytes.NewReader(gzipBytes(t, []byte(fixtureLog))), &out, Gzip)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.String() != fixtureLog {
		t.Errorf("decoded content mismatch\ngot:  %q\nwant: %q", out.String(), fixtureLog)
	}
	if n != int64(len(fixtureLog)) {
		t.Errorf("written = %d, want %d", n, len(fixtureLog))
	}
}

func TestDecode_Zstd(t *testing.T) {
	var out bytes.Buffer
	if _, err := Decode(bytes.NewReader(zstdBytes(t, []byte(fixtureLog))), &out, Zstd); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.String() != fixtureLog {
		t.Errorf("decoded content mismatch\ngot:  %q\nwant: %q", out.String(), fixtureLog)
	}
}

func TestDecode_LargerThanBlock(t *testing.T) {
	// Incompressible payload spanning many blocks must survive byte-for-byte.
	payload := make([]byte, BlockSize*5+123)
	rand.New(rand.NewSource(1)).Read(payload)

	var out bytes.Buffer
	if _, err := Decode(bytes.NewReader(gzipBytes(t, payload)), &out, Gzip); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Error("decoded payload differs from original")
	}
}

func TestDecode_Empty(t *testing.T) {
	var out bytes.Buffer
	n, err := Decode(bytes.NewReader(gzipBytes(t, nil)), &out, Gzip)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != 0 || out.Len() != 0 {
		t.Errorf("expected empty output, got %d bytes", out.Len())
	}
}

func TestDecode_Truncated(t *testing.T) {
	data := gzipBytes(t, []byte(strings.Repeat(fixtureLog, 50)))
	truncated := data[:len(data)/2]

	var out bytes.Buffer
	_, err := Decode(bytes.NewReader(truncated), &out, Gzip)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestDecode_NotGzip(t *testing.T) {
	var out bytes.Buffer
	_, err := Decode(strings.NewReader("plain text, not gzip"), &out, Gzip)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestDecode_CorruptZstd(t *testing.T) {
	var out bytes.Buffer
	_, err := Decode(strings.NewReader("definitely not a zstd frame"), &out, Zstd)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	var out bytes.Buffer
	_, err := Decode(strings.NewReader(""), &out, None)
	if err == nil {
		t.Fatal("expected error for format None")
	}
	if errors.Is(err, ErrCorrupt) {
		t.Error("unsupported format should not be reported as corruption")
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.log.gz")
	if err := os.WriteFile(archivePath, gzipBytes(t, []byte(fixtureLog)), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Extract(archivePath)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := filepath.Join(dir, "a.log"); got != want {
		t.Errorf("Extract path = %q, want %q", got, want)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != fixtureLog {
		t.Errorf("extracted content mismatch\ngot:  %q\nwant: %q", data, fixtureLog)
	}
}

func TestExtract_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.log"), []byte("stale"), 0o644)
	archivePath := filepath.Join(dir, "a.log.gz")
	os.WriteFile(archivePath, gzipBytes(t, []byte(fixtureLog)), 0o644)

	got, err := Extract(archivePath)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, _ := os.ReadFile(got)
	if string(data) != fixtureLog {
		t.Errorf("existing file not overwritten: %q", data)
	}
}

func TestExtract_CorruptKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.log")
	os.WriteFile(existing, []byte("previous good content"), 0o644)

	data := gzipBytes(t, []byte(strings.Repeat(fixtureLog, 50)))
	archivePath := filepath.Join(dir, "a.log.gz")
	os.WriteFile(archivePath, data[:len(data)/2], 0o644)

	_, err := Extract(archivePath)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if !strings.Contains(err.Error(), "a.log.gz") {
		t.Errorf("error should name the archive: %v", err)
	}

	got, _ := os.ReadFile(existing)
	if string(got) != "previous good content" {
		t.Errorf("existing file clobbered: %q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".logsift-extract-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestExtract_NotArchive(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "a.log")); err == nil {
		t.Fatal("expected error for non-archive path")
	}
}

func TestReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.log.zst")
	os.WriteFile(path, zstdBytes(t, []byte(fixtureLog)), 0o644)

	data, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != fixtureLog {
		t.Errorf("ReadAll = %q", data)
	}
}
