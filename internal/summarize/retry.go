package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Retrying retries transient failures of Next with exponential backoff.
type Retrying struct {
	Next       Completer
	MaxRetries int
	BaseDelay  time.Duration
	Log        *slog.Logger
}

func (r *Retrying) Complete(ctx context.Context, prompt string, maxOutput int) (string, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	retries := max(r.MaxRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := max(r.BaseDelay, 0) * time.Duration(1<<(attempt-1))
			log.Warn("chunk retry", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := r.Next.Complete(ctx, prompt, maxOutput)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// server errors, malformed bodies, and network failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoText) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMalformed) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.Code)
	}

	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return retryableStatus(ae.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
