// Package discover enumerates input files in the input directory.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/suykerbuyk/logsift/internal/archive"
)

// LogFile is one matching entry of the input directory.
type LogFile struct {
	Path    string
	Name    string
	Archive bool // compressed; must be extracted before filtering
}

// Discover lists regular files directly under dir whose names match any of
// patterns, sorted by name. Dotfiles and extraction temp files are skipped.
func Discover(dir string, patterns []string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var results []LogFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !Match(name, patterns) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // vanished between ReadDir and Info
		}
		if !info.Mode().IsRegular() {
			continue
		}

		results = append(results, LogFile{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Archive: archive.FormatOf(name) != archive.None,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// Match reports whether a base name is an input file under patterns.
func Match(name string, patterns []string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
