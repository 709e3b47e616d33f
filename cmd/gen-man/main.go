package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra/doc"

	"github.com/suykerbuyk/logsift/internal/cli"
)

func main() {
	dir := "man"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "gen-man: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	header := &doc.GenManHeader{
		Title:   "LOGSIFT",
		Section: "1",
		Source:  "logsift " + cli.Version,
		Manual:  "logsift manual",
		Date:    &now,
	}

	root := cli.NewRootCmd()
	root.DisableAutoGenTag = true
	if err := doc.GenManTree(root, header, dir); err != nil {
		fmt.Fprintf(os.Stderr, "gen-man: %v\n", err)
		os.Exit(1)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		fmt.Printf("  %s\n", filepath.Join(dir, e.Name()))
	}
}
