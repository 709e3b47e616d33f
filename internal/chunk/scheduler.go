package chunk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/suykerbuyk/logsift/internal/summarize"
)

// ErrStrictEmpty is returned in strict mode when a chunk response has no text.
var ErrStrictEmpty = errors.New("chunk response has no text")

// Scheduler issues one completion per window and joins the answers in order.
type Scheduler struct {
	Client summarize.Completer
	Budget Budget

	// Concurrency > 1 issues requests in parallel; output order is unchanged.
	Concurrency int

	// Strict fails the run when any chunk comes back without text.
	Strict bool

	Log *slog.Logger
}

// Result is the reassembled summary of one text.
type Result struct {
	Text        string
	Windows     []Window
	EmptyChunks []int
}

// Run summarizes text window by window.
func (s *Scheduler) Run(ctx context.Context, text string) (*Result, error) {
	if err := s.Budget.Validate(); err != nil {
		return nil, err
	}
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	windows := Plan(text, s.Budget.InputIncrement())
	parts := make([]string, len(windows))
	empty := make([]bool, len(windows))

	do := func(ctx context.Context, w Window) error {
		prompt := s.Budget.Preamble + text[w.Start:w.End]
		out, err := s.Client.Complete(ctx, prompt, s.Budget.OutputIncrement())
		if errors.Is(err, summarize.ErrNoText) {
			empty[w.Index] = true
			log.Warn("chunk has no text", "chunk", w.Index, "start", w.Start, "end", w.End)
			if s.Strict {
				return fmt.Errorf("chunk %d [%d:%d]: %w", w.Index, w.Start, w.End, ErrStrictEmpty)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("chunk %d [%d:%d]: %w", w.Index, w.Start, w.End, err)
		}
		parts[w.Index] = out
		return nil
	}

	var err error
	if s.Concurrency > 1 && len(windows) > 1 {
		err = runParallel(ctx, windows, s.Concurrency, do)
	} else {
		err = runSequential(ctx, windows, do)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:    strings.Join(parts, ""),
		Windows: windows,
	}
	for i, e := range empty {
		if e {
			res.EmptyChunks = append(res.EmptyChunks, i)
		}
	}
	return res, nil
}

func runSequential(ctx context.Context, windows []Window, do func(context.Context, Window) error) error {
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := do(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// runParallel runs do over windows with at most limit in flight. The first
// failure cancels the rest; it is the error returned.
func runParallel(ctx context.Context, windows []Window, limit int, do func(context.Context, Window) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, w := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return do(gctx, w)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
