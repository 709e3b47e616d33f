package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/logsift/internal/pipeline"
	"github.com/suykerbuyk/logsift/internal/watch"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every input file once",
		Long: `Clear the output directory (keeping the sentinel), extract archives in
the input directory, and write one summarized <stem>.log per input.

Exits non-zero when any file failed; the others are still written.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().Bool("no-summary", false, "write filtered text without calling the summarization API")
	cmd.Flags().Int("workers", 0, "override workers")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run once, then process files as they land in the input directory",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	cmd.Flags().Bool("no-summary", false, "write filtered text without calling the summarization API")
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func buildRunner(ctx context.Context, cmd *cobra.Command) (*pipeline.Runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if off, _ := cmd.Flags().GetBool("no-summary"); off {
		cfg.Summary.Enabled = false
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Workers = n
	}
	log := newLogger(cfg.Log, cmd.ErrOrStderr())
	return pipeline.Build(ctx, cfg, log)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := buildRunner(ctx, cmd)
	if err != nil {
		return err
	}
	defer runner.Close()

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range report.Files {
		printResult(out, res)
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(report.Files))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := buildRunner(ctx, cmd)
	if err != nil {
		return err
	}
	defer runner.Close()

	out := cmd.OutOrStdout()
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, res := range report.Files {
		printResult(out, res)
	}

	// Extracting an archive creates its .log, which fires its own event.
	runner.SkipUnchanged = true

	debounce, _ := cmd.Flags().GetDuration("debounce")
	w := &watch.Watcher{
		Dir:      runner.Config.InputDir,
		Patterns: runner.Config.Patterns,
		Debounce: debounce,
		Log:      runner.Log,
		Handle: func(ctx context.Context, path string) {
			res := runner.ProcessPath(ctx, path)
			if !res.Skipped {
				printResult(out, res)
			}
		},
	}
	return w.Run(ctx)
}

func printResult(w io.Writer, res pipeline.FileResult) {
	switch {
	case res.Err != nil:
		fmt.Fprintf(w, "failed:  %s: %v\n", res.Name, res.Err)
	case res.Skipped:
		fmt.Fprintf(w, "skipped: %s (unchanged)\n", res.Name)
	default:
		detail := "filtered"
		if res.Chunks > 0 || res.EmptyChunks > 0 {
			detail = fmt.Sprintf("%d chunks", res.Chunks)
			if res.EmptyChunks > 0 {
				detail += fmt.Sprintf(", %d empty", res.EmptyChunks)
			}
		}
		target := filepath.Base(res.Output)
		if res.URL != "" {
			target += " -> " + res.URL
		}
		fmt.Fprintf(w, "wrote:   %s (%s)\n", target, detail)
	}
}
