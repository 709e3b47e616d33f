package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/suykerbuyk/logsift/internal/archive"
	"github.com/suykerbuyk/logsift/internal/chunk"
	"github.com/suykerbuyk/logsift/internal/index"
	"github.com/suykerbuyk/logsift/internal/logfilter"
	"github.com/suykerbuyk/logsift/internal/pipeline"
)

func filterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <file>",
		Short: "Print the filtered text of a log or archive",
		Long: `Decode, normalize, and filter one file and print what would be sent for
summarization. Nothing is written to disk.

With --retained the argument is a stem, and the copy kept under
<state_dir>/filtered by [archive] retain_filtered is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := inspectRunner(cmd)
			if err != nil {
				return err
			}

			var text string
			if retained, _ := cmd.Flags().GetBool("retained"); retained {
				dir := runner.Config.FilteredDir()
				if !archive.IsRetained(dir, args[0]) {
					return fmt.Errorf("no retained copy of %s in %s", args[0], dir)
				}
				text, err = archive.ReadRetained(archive.RetainedPath(dir, args[0]))
			} else {
				text, err = runner.Filtered(args[0])
			}
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().Bool("retained", false, "print the retained filtered copy for a stem")
	return cmd
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <file>",
		Short: "Show how a file would be split into requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := inspectRunner(cmd)
			if err != nil {
				return err
			}
			text, err := runner.Filtered(args[0])
			if err != nil {
				return err
			}

			budget := chunk.Budget{
				TotalTokens: runner.Config.Summary.MaxTotalTokens,
				Preamble:    runner.Config.Summary.Prompt,
			}
			if err := budget.Validate(); err != nil {
				return err
			}
			windows := chunk.Plan(text, budget.InputIncrement())
			printPlan(cmd.OutOrStdout(), args[0], len(text), budget, windows)
			return nil
		},
	}
}

// inspectRunner builds a Runner for read-only commands; no credential or
// index is needed.
func inspectRunner(cmd *cobra.Command) (*pipeline.Runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	filter, err := logfilter.New(cfg.Filter)
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{
		Config: cfg,
		Filter: filter,
		Log:    newLogger(cfg.Log, cmd.ErrOrStderr()),
	}, nil
}

func printPlan(w io.Writer, name string, filtered int, b chunk.Budget, windows []chunk.Window) {
	fmt.Fprintf(w, "%s: %s filtered, %d chunks\n", name, humanize.Bytes(uint64(filtered)), len(windows))
	fmt.Fprintf(w, "budget %d: preamble %d, input %d, output %d\n\n",
		b.TotalTokens, len(b.Preamble), b.InputIncrement(), b.OutputIncrement())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tSTART\tEND\tBYTES")
	for _, win := range windows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", win.Index, win.Start, win.End, win.Len())
	}
	tw.Flush()
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List processed files from the run index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Index.Enabled {
				return fmt.Errorf("index disabled in config")
			}
			store, err := index.Open(cfg.IndexPath())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if prune, _ := cmd.Flags().GetBool("prune"); prune {
				removed, err := store.Prune(ctx)
				if err != nil {
					return err
				}
				for _, stem := range removed {
					fmt.Fprintf(out, "pruned: %s\n", stem)
				}
			}

			files, err := store.Files(ctx)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "no files processed yet")
				return nil
			}
			printStatus(out, files, cfg.FilteredDir())
			return nil
		},
	}
	cmd.Flags().Bool("prune", false, "drop records whose source file no longer exists")
	return cmd
}

func printStatus(w io.Writer, files []index.FileRecord, retainDir string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEM\tCHUNKS\tEMPTY\tIN\tFILTERED\tRETAINED\tPROCESSED\tRUN")
	for _, f := range files {
		run := f.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		retained := "-"
		if archive.IsRetained(retainDir, f.Stem) {
			retained = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			f.Stem, f.Chunks, f.EmptyChunks,
			humanize.Bytes(uint64(f.BytesIn)), humanize.Bytes(uint64(f.BytesFiltered)),
			retained, humanize.Time(f.ProcessedAt), run)
	}
	tw.Flush()
}
