package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Retain compresses text into dir/{stem}.log.zst and returns the archive path.
func Retain(text, dir, stem string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create retain dir: %w", err)
	}

	destPath := RetainedPath(dir, stem)
	tmp, err := os.CreateTemp(dir, ".logsift-retain-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := encoder.Write([]byte(text)); err != nil {
		encoder.Close()
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("compress: %w", err)
	}

	if err := encoder.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize compression: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename retained file: %w", err)
	}

	return destPath, nil
}

// ReadRetained returns the text stored by Retain.
func ReadRetained(path string) (string, error) {
	if !strings.HasSuffix(path, ".zst") {
		return "", fmt.Errorf("%s: not a retained archive", path)
	}
	data, err := ReadAll(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsRetained returns true if a retained archive exists for stem.
func IsRetained(dir, stem string) bool {
	_, err := os.Stat(RetainedPath(dir, stem))
	return err == nil
}

// RetainedPath returns the deterministic retained-archive path for a stem.
func RetainedPath(dir, stem string) string {
	return filepath.Join(dir, stem+".log.zst")
}
