// Package pipeline runs the extract, filter, summarize, write sequence for
// each input file and the batch over the input directory.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/suykerbuyk/logsift/internal/archive"
	"github.com/suykerbuyk/logsift/internal/chunk"
	"github.com/suykerbuyk/logsift/internal/config"
	"github.com/suykerbuyk/logsift/internal/discover"
	"github.com/suykerbuyk/logsift/internal/index"
	"github.com/suykerbuyk/logsift/internal/logfilter"
	"github.com/suykerbuyk/logsift/internal/outdir"
	"github.com/suykerbuyk/logsift/internal/publish"
	"github.com/suykerbuyk/logsift/internal/summarize"
)

// Runner holds everything one batch or watch session needs.
type Runner struct {
	Config config.Config
	Filter *logfilter.Filter

	// Completer summarizes chunks. Nil writes the filtered text unchanged.
	Completer summarize.Completer

	Index     *index.Store     // optional
	Publisher publish.Publisher // optional
	Log       *slog.Logger
	RunID     string

	// SkipUnchanged skips a file whose content hash matches its index
	// record and whose output is still present.
	SkipUnchanged bool
}

// FileResult is the outcome for one input.
type FileResult struct {
	Name          string // output stem
	Source        string
	Output        string
	URL           string
	Chunks        int
	EmptyChunks   int
	BytesIn       int64
	BytesFiltered int64
	Skipped       bool
	Err           error
}

// Report collects per-file results in input order.
type Report struct {
	RunID   string
	Cleared int
	Files   []FileResult
}

// Failed returns the number of files that did not produce output.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Stem returns the output stem for a decompressed log path: the base name
// minus its last extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

type task struct {
	name   string
	source string
	path   string // decompressed .log to process
	err    error  // preparation failure
}

// Run clears the output directory, prepares every input, and processes each
// decompressed log. A failure is confined to its file; Run itself only fails
// when the directories cannot be used.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	log := r.logger()
	cfg := r.Config

	cleared, err := outdir.Clear(cfg.OutputDir, cfg.Sentinel)
	if err != nil {
		return nil, err
	}

	files, err := discover.Discover(cfg.InputDir, cfg.Patterns)
	if err != nil {
		return nil, err
	}
	log.Info("run started", "run", r.RunID, "inputs", len(files), "cleared", cleared)

	tasks := r.prepare(files)
	report := &Report{
		RunID:   r.RunID,
		Cleared: cleared,
		Files:   make([]FileResult, len(tasks)),
	}

	var g errgroup.Group
	g.SetLimit(max(cfg.Workers, 1))
	for i, t := range tasks {
		g.Go(func() error {
			if t.err != nil {
				report.Files[i] = FileResult{Name: t.name, Source: t.source, Err: t.err}
				return nil
			}
			res := r.ProcessLog(ctx, t.path)
			res.Source = t.source
			report.Files[i] = res
			return nil
		})
	}
	g.Wait()

	log.Info("run finished", "run", r.RunID, "files", len(report.Files), "failed", report.Failed())
	return report, nil
}

// prepare extracts archives next to themselves and returns one task per
// output stem, sorted by stem. An archive that fails to extract shadows any
// stale .log of the same name.
func (r *Runner) prepare(files []discover.LogFile) []task {
	log := r.logger()
	byName := make(map[string]task)

	for _, f := range files {
		if !f.Archive {
			continue
		}
		log.Info("extracting archive", "file", f.Name)
		dest := archive.TrimSuffix(f.Path)
		name := Stem(dest)

		path, err := archive.Extract(f.Path)
		if err != nil {
			log.Error("file failed", "file", f.Name, "error", err)
			byName[name] = task{name: name, source: f.Path, err: err}
			continue
		}
		if filepath.Ext(path) != ".log" {
			log.Warn("extracted file is not a .log, skipping", "file", f.Name, "extracted", filepath.Base(path))
			continue
		}
		byName[name] = task{name: name, source: f.Path, path: path}
	}

	for _, f := range files {
		if f.Archive || filepath.Ext(f.Name) != ".log" {
			continue
		}
		name := Stem(f.Path)
		if _, ok := byName[name]; ok {
			continue
		}
		byName[name] = task{name: name, source: f.Path, path: f.Path}
	}

	tasks := make([]task, 0, len(byName))
	for _, t := range byName {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].name < tasks[j].name })
	return tasks
}

// ProcessPath handles one input as watch mode sees it: archives are
// extracted first, .log files are processed directly.
func (r *Runner) ProcessPath(ctx context.Context, path string) FileResult {
	if archive.FormatOf(path) == archive.None {
		return r.ProcessLog(ctx, path)
	}

	log := r.logger()
	log.Info("extracting archive", "file", filepath.Base(path))
	extracted, err := archive.Extract(path)
	if err != nil {
		log.Error("file failed", "file", filepath.Base(path), "error", err)
		return FileResult{Name: Stem(archive.TrimSuffix(path)), Source: path, Err: err}
	}
	if filepath.Ext(extracted) != ".log" {
		return FileResult{Name: filepath.Base(extracted), Source: path, Skipped: true}
	}
	res := r.ProcessLog(ctx, extracted)
	res.Source = path
	return res
}

// ProcessLog filters and summarizes one decompressed log and writes
// <stem>.log to the output directory.
func (r *Runner) ProcessLog(ctx context.Context, path string) FileResult {
	start := time.Now()
	log := r.logger()
	res := FileResult{Name: Stem(path), Source: path}

	fail := func(err error) FileResult {
		res.Err = err
		log.Error("file failed", "file", filepath.Base(path), "error", err)
		return res
	}

	log.Info("parsing file", "file", filepath.Base(path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("read log: %w", err))
	}
	res.BytesIn = int64(len(raw))
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	outName := res.Name + ".log"
	if r.SkipUnchanged && r.Index != nil && r.unchanged(ctx, res.Name, hash) {
		res.Skipped = true
		res.Output = filepath.Join(r.Config.OutputDir, outName)
		log.Debug("file unchanged, skipping", "file", filepath.Base(path))
		return res
	}

	text := r.Filter.Apply(logfilter.Normalize(raw))
	res.BytesFiltered = int64(len(text))

	if r.Config.Archive.RetainFiltered {
		if _, err := archive.Retain(text, r.Config.FilteredDir(), res.Name); err != nil {
			return fail(err)
		}
	}

	output := text
	if r.Completer != nil {
		sched := &chunk.Scheduler{
			Client: r.Completer,
			Budget: chunk.Budget{
				TotalTokens: r.Config.Summary.MaxTotalTokens,
				Preamble:    r.Config.Summary.Prompt,
			},
			Concurrency: r.Config.Summary.Concurrency,
			Strict:      r.Config.Summary.Strict,
			Log:         log.With("file", filepath.Base(path)),
		}
		summary, err := sched.Run(ctx, text)
		if err != nil {
			return fail(fmt.Errorf("summarize: %w", err))
		}
		output = summary.Text
		res.Chunks = len(summary.Windows)
		res.EmptyChunks = len(summary.EmptyChunks)
	}

	res.Output, err = outdir.WriteAtomic(r.Config.OutputDir, outName, []byte(output))
	if err != nil {
		return fail(err)
	}

	if r.Publisher != nil {
		res.URL, err = r.Publisher.Publish(ctx, outName, []byte(output))
		if err != nil {
			return fail(err)
		}
	}

	if r.Index != nil {
		err := r.Index.RecordFile(ctx, index.FileRecord{
			Stem:          res.Name,
			SourcePath:    path,
			SourceSHA256:  hash,
			OutputPath:    res.Output,
			Chunks:        res.Chunks,
			EmptyChunks:   res.EmptyChunks,
			BytesIn:       res.BytesIn,
			BytesFiltered: res.BytesFiltered,
			RunID:         r.RunID,
		})
		if err != nil {
			log.Warn("index record failed", "file", filepath.Base(path), "error", err)
		}
	}

	log.Info("file summarized",
		"file", filepath.Base(path),
		"chunks", res.Chunks,
		"empty_chunks", res.EmptyChunks,
		"in", humanize.Bytes(uint64(res.BytesIn)),
		"filtered", humanize.Bytes(uint64(res.BytesFiltered)),
		"out", humanize.Bytes(uint64(len(output))),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return res
}

func (r *Runner) unchanged(ctx context.Context, stem, hash string) bool {
	rec, err := r.Index.File(ctx, stem)
	if err != nil {
		if !errors.Is(err, index.ErrNotFound) {
			r.logger().Warn("index lookup failed", "file", stem, "error", err)
		}
		return false
	}
	if rec.SourceSHA256 != hash {
		return false
	}
	_, err = os.Stat(rec.OutputPath)
	return err == nil
}

// Filtered returns the normalized, filtered text of a log or archive without
// writing anything.
func (r *Runner) Filtered(path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if archive.FormatOf(path) != archive.None {
		raw, err = archive.ReadAll(path)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return r.Filter.Apply(logfilter.Normalize(raw)), nil
}

// Close releases the index.
func (r *Runner) Close() error {
	if r.Index == nil {
		return nil
	}
	return r.Index.Close()
}
