package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the logsift config directory path.
// Uses $XDG_CONFIG_HOME/logsift if set, otherwise ~/.config/logsift.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "logsift")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "logsift")
}

const defaultFile = `# logsift configuration

input_dir = "./in"
output_dir = "./out"
state_dir = "./.logsift"
# Entry in output_dir that survives the pre-run clear.
sentinel = ".gitignore"
patterns = ["*.gz", "*.zst", "*.log"]
workers = 1

[filter]
timestamp_pattern = '\[\d{2}:\d{2}:\d{2}\]\s+'
info_marker = "[Server thread/INFO]"
done_marker = "[Server thread/INFO]: Done"
redact_addresses = false

[summary]
enabled = true
provider = "openai"
model = "gpt-3.5-turbo-instruct"
api_key_env = "API_KEY"
base_url = "https://api.openai.com/v1"
timeout_seconds = 60
max_total_tokens = 2048
max_retries = 3
retry_base_delay_ms = 1000
concurrency = 1
strict = false

[index]
enabled = true
cache_completions = true

[archive]
retain_filtered = false

[publish]
bucket = ""
prefix = ""
region = "auto"
endpoint = ""
access_key_env = "LOGSIFT_S3_ACCESS_KEY_ID"
secret_key_env = "LOGSIFT_S3_SECRET_ACCESS_KEY"

[log]
level = "info"
format = "text"
`

// WriteDefault writes a default config.toml into dir (ConfigDir when empty).
// Returns the config file path and whether it was created. An existing file
// is left untouched.
func WriteDefault(dir string) (string, bool, error) {
	if dir == "" {
		dir = ConfigDir()
	}
	path := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultFile), 0o644); err != nil {
		return "", false, fmt.Errorf("write config: %w", err)
	}

	return path, true, nil
}

// CompressHome replaces $HOME prefix with ~/ for display.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
