package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/suykerbuyk/logsift/internal/config"
	"github.com/suykerbuyk/logsift/internal/index"
	"github.com/suykerbuyk/logsift/internal/logfilter"
	"github.com/suykerbuyk/logsift/internal/publish"
	"github.com/suykerbuyk/logsift/internal/summarize"
)

// Build wires a Runner from cfg. With summary enabled a missing credential
// is returned before anything on disk is touched.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	filter, err := logfilter.New(cfg.Filter)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r := &Runner{
		Config: cfg,
		Filter: filter,
		Log:    log.With("run", runID),
		RunID:  runID,
	}

	if cfg.Summary.Enabled {
		r.Completer, err = summarize.New(cfg.Summary, r.Log)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Index.Enabled {
		r.Index, err = index.Open(cfg.IndexPath())
		if err != nil {
			return nil, err
		}
		if r.Completer != nil && cfg.Index.CacheCompletions {
			r.Completer = &index.CachingCompleter{
				Store:     r.Index,
				Next:      r.Completer,
				Namespace: cfg.Summary.Provider + "/" + cfg.Summary.Model,
				Log:       r.Log,
			}
		}
	}

	pub, err := publish.New(ctx, cfg.Publish, r.Log)
	if err != nil {
		r.Close()
		return nil, err
	}
	if pub != nil {
		r.Publisher = pub
	}

	return r, nil
}
