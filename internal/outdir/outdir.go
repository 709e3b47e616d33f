// Package outdir manages the output directory: clearing it between runs
// and writing per-file results atomically.
package outdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Clear creates dir if needed and removes every entry except sentinel.
// It returns the number of entries removed.
func Clear(dir, sentinel string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if sentinel != "" && e.Name() == sentinel {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// WriteAtomic writes data to dir/name through a temp file in the same
// directory, so readers never observe a partial file.
func WriteAtomic(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dest := filepath.Join(dir, name)
	if err := renameio.WriteFile(dest, data, 0o644, renameio.IgnoreUmask()); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return dest, nil
}
