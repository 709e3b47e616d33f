// Package cli builds the logsift command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/logsift/internal/config"
)

// Version is stamped at build time.
var Version = "0.1.0"

// NewRootCmd returns the logsift command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "logsift",
		Short: "Filter and summarize server log archives",
		Long: `logsift extracts server log archives, keeps the informational lines
written after startup, and summarizes them in budget-sized chunks through a
text-completion API. One <stem>.log is written per input.

Configuration: ~/.config/logsift/config.toml (see "logsift init").`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default: ~/.config/logsift/config.toml)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config; existing variables win")
	root.PersistentFlags().String("input", "", "override input_dir")
	root.PersistentFlags().String("output", "", "override output_dir")
	root.PersistentFlags().String("log-level", "", "override [log] level (debug, info, warn, error)")

	root.AddCommand(
		runCmd(),
		watchCmd(),
		filterCmd(),
		planCmd(),
		statusCmd(),
		checkCmd(),
		initCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "logsift: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig resolves configuration for a command: dotenv, TOML, then flag
// overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return config.Config{}, err
		}
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.InputDir = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by [log].
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logsift v%s\n", Version)
		},
	}
}
