package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suykerbuyk/logsift/internal/config"
	"github.com/suykerbuyk/logsift/internal/discover"
	"github.com/suykerbuyk/logsift/internal/index"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "logsift check\n\n  no checks ran\n"
	}

	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("logsift check\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckConfig reports where settings came from and whether they validate.
func CheckConfig(cfg config.Config) Result {
	src := "defaults (no config file)"
	if cfg.Path != "" {
		src = config.CompressHome(cfg.Path)
	}
	if err := cfg.Validate(); err != nil {
		return Result{Name: "config", Status: Fail, Detail: src + ": " + err.Error()}
	}
	return Result{Name: "config", Status: Pass, Detail: src}
}

// CheckInputDir checks the input directory and counts matching inputs.
func CheckInputDir(dir string, patterns []string) Result {
	files, err := discover.Discover(dir, patterns)
	if err != nil {
		return Result{Name: "input", Status: Fail, Detail: dir + " not readable"}
	}
	archives := 0
	for _, f := range files {
		if f.Archive {
			archives++
		}
	}
	return Result{
		Name:   "input",
		Status: Pass,
		Detail: fmt.Sprintf("%s (%d inputs, %d archives)", config.CompressHome(dir), len(files), archives),
	}
}

// CheckOutputDir checks the output directory and its sentinel. A missing
// directory is created on the next run.
func CheckOutputDir(dir, sentinel string) Result {
	info, err := os.Stat(dir)
	if err != nil {
		return Result{Name: "output", Status: Warn, Detail: dir + " not found (created on run)"}
	}
	if !info.IsDir() {
		return Result{Name: "output", Status: Fail, Detail: dir + " is not a directory"}
	}
	if sentinel == "" {
		return Result{Name: "output", Status: Pass, Detail: config.CompressHome(dir)}
	}
	if _, err := os.Stat(filepath.Join(dir, sentinel)); err != nil {
		return Result{Name: "output", Status: Warn, Detail: sentinel + " not present in " + config.CompressHome(dir)}
	}
	return Result{Name: "output", Status: Pass, Detail: fmt.Sprintf("%s (keeps %s)", config.CompressHome(dir), sentinel)}
}

// CheckAPIKey checks the summarization credential. Its absence is fatal for
// run, so it fails here too.
func CheckAPIKey(scfg config.SummaryConfig) Result {
	if !scfg.Enabled {
		return Result{Name: "api key", Status: Pass, Detail: "summary disabled (passthrough)"}
	}
	if os.Getenv(scfg.APIKeyEnv) != "" {
		return Result{Name: "api key", Status: Pass, Detail: fmt.Sprintf("%s set (%s, %s)", scfg.APIKeyEnv, scfg.Provider, scfg.Model)}
	}
	return Result{Name: "api key", Status: Fail, Detail: scfg.APIKeyEnv + " not set"}
}

// CheckIndex opens the run index and reports its size.
func CheckIndex(cfg config.Config) Result {
	if !cfg.Index.Enabled {
		return Result{Name: "index", Status: Pass, Detail: "disabled"}
	}
	path := cfg.IndexPath()
	if _, err := os.Stat(path); err != nil {
		return Result{Name: "index", Status: Warn, Detail: config.CompressHome(path) + " not created yet"}
	}

	store, err := index.Open(path)
	if err != nil {
		return Result{Name: "index", Status: Fail, Detail: err.Error()}
	}
	defer store.Close()

	ctx := context.Background()
	files, err := store.Files(ctx)
	if err != nil {
		return Result{Name: "index", Status: Fail, Detail: "read files: " + err.Error()}
	}
	cached, err := store.CompletionCount(ctx)
	if err != nil {
		return Result{Name: "index", Status: Fail, Detail: "read completions: " + err.Error()}
	}
	return Result{
		Name:   "index",
		Status: Pass,
		Detail: fmt.Sprintf("%s (%d files, %d cached completions)", config.CompressHome(path), len(files), cached),
	}
}

// CheckPublish reports the upload target, if any.
func CheckPublish(pcfg config.PublishConfig) Result {
	if pcfg.Bucket == "" {
		return Result{Name: "publish", Status: Pass, Detail: "disabled"}
	}
	target := "s3://" + pcfg.Bucket
	if pcfg.Prefix != "" {
		target += "/" + strings.Trim(pcfg.Prefix, "/")
	}
	access, secret := os.Getenv(pcfg.AccessKeyEnv), os.Getenv(pcfg.SecretKeyEnv)
	switch {
	case access != "" && secret != "":
		return Result{Name: "publish", Status: Pass, Detail: target}
	case access != "" || secret != "":
		return Result{Name: "publish", Status: Fail, Detail: fmt.Sprintf("set both %s and %s", pcfg.AccessKeyEnv, pcfg.SecretKeyEnv)}
	default:
		return Result{Name: "publish", Status: Warn, Detail: target + " (default AWS credential chain)"}
	}
}

// Run executes all checks against the given config and returns a report.
func Run(cfg config.Config) Report {
	var results []Result

	results = append(results, CheckConfig(cfg))
	results = append(results, CheckInputDir(cfg.InputDir, cfg.Patterns))
	results = append(results, CheckOutputDir(cfg.OutputDir, cfg.Sentinel))
	results = append(results, CheckAPIKey(cfg.Summary))
	results = append(results, CheckIndex(cfg))
	results = append(results, CheckPublish(cfg.Publish))

	return Report{Results: results}
}
