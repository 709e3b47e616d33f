package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// BlockSize is the size of the intermediate buffer used while decoding.
const BlockSize = 4096

// ErrCorrupt reports a decompression failure, as opposed to a clean end of stream.
var ErrCorrupt = errors.New("corrupt archive")

// Format identifies a supported compression container.
type Format int

const (
	None Format = iota
	Gzip
	Zstd
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// FormatOf infers the compression format from a file name suffix.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst":
		return Zstd
	default:
		return None
	}
}

// TrimSuffix returns path with its compression suffix removed.
func TrimSuffix(path string) string {
	if FormatOf(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Decode streams the decompressed content of src into dst one block at a
// time and returns the number of bytes written. Decoder failures wrap ErrCorrupt.
func Decode(src io.Reader, dst io.Writer, format Format) (int64, error) {
	var r io.Reader
	switch format {
	case Gzip:
		zr, err := gzip.NewReader(src)
		if err != nil {
			return 0, fmt.Errorf("%w: gzip header: %v", ErrCorrupt, err)
		}
		defer zr.Close()
		zr.Multistream(false)
		r = zr
	case Zstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return 0, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return 0, fmt.Errorf("unsupported archive format %s", format)
	}

	buf := make([]byte, BlockSize)
	var written int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write decoded block: %w", werr)
			}
			written += int64(n)
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
}

// Extract decompresses archivePath next to itself, named without the
// compression suffix, and returns the extracted path. Output goes to a temp
// file that is renamed into place only after a complete decode, so a corrupt
// archive never replaces an existing file.
func Extract(archivePath string) (string, error) {
	format := FormatOf(archivePath)
	if format == None {
		return "", fmt.Errorf("%s: not a compressed archive", archivePath)
	}
	destPath := TrimSuffix(archivePath)

	src, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".logsift-extract-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := Decode(src, tmp, format); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("decompress %s: %w", filepath.Base(archivePath), err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename extracted file: %w", err)
	}

	return destPath, nil
}

// ReadAll decodes a whole archive into memory.
func ReadAll(archivePath string) ([]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := Decode(f, &buf, FormatOf(archivePath)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
