package summarize

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/suykerbuyk/logsift/internal/config"
)

// APIKey reads the credential named by cfg.APIKeyEnv.
func APIKey(cfg config.SummaryConfig) (string, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%w: set %s", ErrNoAPIKey, cfg.APIKeyEnv)
	}
	return key, nil
}

// New builds the configured provider wrapped in Retrying.
func New(cfg config.SummaryConfig, log *slog.Logger) (Completer, error) {
	apiKey, err := APIKey(cfg)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	var next Completer
	switch cfg.Provider {
	case config.ProviderOpenAI:
		next = &OpenAIClient{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  apiKey,
			HTTP:    &http.Client{Timeout: timeout},
		}
	case config.ProviderAnthropic:
		opts := []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
		}
		if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultConfig().Summary.BaseURL {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		next = NewAnthropic(cfg.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	return &Retrying{
		Next:       next,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		Log:        log,
	}, nil
}
