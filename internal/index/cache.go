package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/suykerbuyk/logsift/internal/summarize"
)

// CachingCompleter answers repeated prompts from the index. Namespace should
// identify the provider and model so a model change misses the cache.
type CachingCompleter struct {
	Store     *Store
	Next      summarize.Completer
	Namespace string
	Log       *slog.Logger
}

// CacheKey derives the completion cache key.
func CacheKey(namespace string, maxOutput int, prompt string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(maxOutput)))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Complete implements summarize.Completer.
func (c *CachingCompleter) Complete(ctx context.Context, prompt string, maxOutput int) (string, error) {
	key := CacheKey(c.Namespace, maxOutput, prompt)

	text, ok, err := c.Store.CachedCompletion(ctx, key)
	if err != nil {
		c.logger().Warn("completion cache read failed", "err", err)
	} else if ok {
		return text, nil
	}

	text, err = c.Next.Complete(ctx, prompt, maxOutput)
	if err != nil {
		return "", err
	}
	if err := c.Store.StoreCompletion(ctx, key, text); err != nil {
		c.logger().Warn("completion cache write failed", "err", err)
	}
	return text, nil
}

func (c *CachingCompleter) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
