package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPrompt is the preamble prepended to every chunk sent for summarization.
const DefaultPrompt = "Filter the log to only keep time, player chat, player events and player commands. Ignore thirst and disease. \n"

// Config holds all logsift configuration.
type Config struct {
	InputDir  string   `toml:"input_dir"`
	OutputDir string   `toml:"output_dir"`
	StateDir  string   `toml:"state_dir"`
	Sentinel  string   `toml:"sentinel"`
	Patterns  []string `toml:"patterns"`
	Workers   int      `toml:"workers"`

	Filter  FilterConfig  `toml:"filter"`
	Summary SummaryConfig `toml:"summary"`
	Index   IndexConfig   `toml:"index"`
	Archive ArchiveConfig `toml:"archive"`
	Publish PublishConfig `toml:"publish"`
	Log     LogConfig     `toml:"log"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `toml:"-"`
}

type FilterConfig struct {
	TimestampPattern string `toml:"timestamp_pattern"`
	InfoMarker       string `toml:"info_marker"`
	DoneMarker       string `toml:"done_marker"`
	RedactAddresses  bool   `toml:"redact_addresses"`
}

type SummaryConfig struct {
	Enabled          bool   `toml:"enabled"`
	Provider         string `toml:"provider"`
	Model            string `toml:"model"`
	APIKeyEnv        string `toml:"api_key_env"`
	BaseURL          string `toml:"base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxTotalTokens   int    `toml:"max_total_tokens"`
	Prompt           string `toml:"prompt"`
	MaxRetries       int    `toml:"max_retries"`
	RetryBaseDelayMs int    `toml:"retry_base_delay_ms"`
	Concurrency      int    `toml:"concurrency"`
	Strict           bool   `toml:"strict"`
}

type IndexConfig struct {
	Enabled          bool `toml:"enabled"`
	CacheCompletions bool `toml:"cache_completions"`
}

type ArchiveConfig struct {
	RetainFiltered bool `toml:"retain_filtered"`
}

type PublishConfig struct {
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKeyEnv string `toml:"access_key_env"`
	SecretKeyEnv string `toml:"secret_key_env"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Providers accepted in [summary] provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InputDir:  "./in",
		OutputDir: "./out",
		StateDir:  "./.logsift",
		Sentinel:  ".gitignore",
		Patterns:  []string{"*.gz", "*.zst", "*.log"},
		Workers:   1,
		Filter: FilterConfig{
			TimestampPattern: `\[\d{2}:\d{2}:\d{2}\]\s+`,
			InfoMarker:       "[Server thread/INFO]",
			DoneMarker:       "[Server thread/INFO]: Done",
		},
		Summary: SummaryConfig{
			Enabled:          true,
			Provider:         ProviderOpenAI,
			Model:            "gpt-3.5-turbo-instruct",
			APIKeyEnv:        "API_KEY",
			BaseURL:          "https://api.openai.com/v1",
			TimeoutSeconds:   60,
			MaxTotalTokens:   2048,
			Prompt:           DefaultPrompt,
			MaxRetries:       3,
			RetryBaseDelayMs: 1000,
			Concurrency:      1,
		},
		Index: IndexConfig{
			Enabled:          true,
			CacheCompletions: true,
		},
		Publish: PublishConfig{
			Region:       "auto",
			AccessKeyEnv: "LOGSIFT_S3_ACCESS_KEY_ID",
			SecretKeyEnv: "LOGSIFT_S3_SECRET_ACCESS_KEY",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config from path, or from the standard locations when path is
// empty, falling back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var candidates []string
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		candidates = []string{path}
	} else {
		candidates = configPaths()
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			cfg.Path = p
			break
		}
	}

	cfg.InputDir = expandHome(cfg.InputDir)
	cfg.OutputDir = expandHome(cfg.OutputDir)
	cfg.StateDir = expandHome(cfg.StateDir)

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := regexp.Compile(c.Filter.TimestampPattern); err != nil {
		return fmt.Errorf("filter.timestamp_pattern: %w", err)
	}
	if !c.Summary.Enabled {
		return nil
	}
	switch c.Summary.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("summary.provider: unknown provider %q", c.Summary.Provider)
	}
	if c.Summary.Concurrency < 1 {
		return fmt.Errorf("summary.concurrency must be at least 1, got %d", c.Summary.Concurrency)
	}
	if c.Summary.MaxRetries < 0 {
		return fmt.Errorf("summary.max_retries must not be negative, got %d", c.Summary.MaxRetries)
	}
	if c.Summary.RetryBaseDelayMs < 0 {
		return fmt.Errorf("summary.retry_base_delay_ms must not be negative, got %d", c.Summary.RetryBaseDelayMs)
	}
	if c.Summary.MaxTotalTokens/2 <= len(c.Summary.Prompt) {
		return fmt.Errorf("summary.max_total_tokens %d leaves no room for input after a %d-character prompt",
			c.Summary.MaxTotalTokens, len(c.Summary.Prompt))
	}
	return nil
}

// IndexPath returns the SQLite index location inside the state directory.
func (c Config) IndexPath() string {
	return filepath.Join(c.StateDir, "index.db")
}

// FilteredDir returns where retained filtered logs are kept.
func (c Config) FilteredDir() string {
	return filepath.Join(c.StateDir, "filtered")
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "logsift", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "logsift", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
