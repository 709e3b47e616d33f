package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/logsift/internal/check"
	"github.com/suykerbuyk/logsift/internal/config"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report on configuration, directories, credentials, and the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			report := check.Run(cfg)
			fmt.Fprint(cmd.OutOrStdout(), report.Format())
			if report.HasFailures() {
				return fmt.Errorf("check failed")
			}
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the working directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			out := cmd.OutOrStdout()

			path, created, err := config.WriteDefault(dir)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(out, "created: %s\n", config.CompressHome(path))
			} else {
				fmt.Fprintf(out, "exists:  %s\n", config.CompressHome(path))
			}

			if c, _ := cmd.Flags().GetString("config"); c == "" {
				cmd.Flags().Set("config", path)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			for _, d := range []string{cfg.InputDir, cfg.OutputDir} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", d, err)
				}
			}
			if cfg.Sentinel != "" {
				sentinel := filepath.Join(cfg.OutputDir, cfg.Sentinel)
				if _, err := os.Stat(sentinel); os.IsNotExist(err) {
					if err := os.WriteFile(sentinel, []byte("*\n!"+cfg.Sentinel+"\n"), 0o644); err != nil {
						return fmt.Errorf("write sentinel: %w", err)
					}
				}
			}
			fmt.Fprintf(out, "input:   %s\noutput:  %s\n", config.CompressHome(cfg.InputDir), config.CompressHome(cfg.OutputDir))
			return nil
		},
	}
	cmd.Flags().String("dir", "", "directory for config.toml (default: ~/.config/logsift)")
	return cmd
}
