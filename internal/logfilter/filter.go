// Package logfilter turns raw server log text into the informational subset
// worth summarizing.
package logfilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/suykerbuyk/logsift/internal/config"
)

// Filter keeps informational segments of a timestamp-delimited log and drops
// everything before the server reports it is ready.
type Filter struct {
	timestamp  *regexp.Regexp
	infoMarker string
	doneMarker string
	redact     bool
}

// New builds a Filter from the [filter] config section.
func New(cfg config.FilterConfig) (*Filter, error) {
	re, err := regexp.Compile(cfg.TimestampPattern)
	if err != nil {
		return nil, fmt.Errorf("compile timestamp pattern: %w", err)
	}
	return &Filter{
		timestamp:  re,
		infoMarker: cfg.InfoMarker,
		doneMarker: cfg.DoneMarker,
		redact:     cfg.RedactAddresses,
	}, nil
}

// Default returns the Filter for vanilla server logs.
func Default() *Filter {
	f, err := New(config.DefaultConfig().Filter)
	if err != nil {
		panic(err)
	}
	return f
}

// Segments splits text on timestamp delimiters. Delimiters are dropped.
func (f *Filter) Segments(text string) []string {
	return f.timestamp.Split(text, -1)
}

// IsInfo reports whether a segment is an informational entry.
func (f *Filter) IsInfo(segment string) bool {
	return strings.Contains(segment, f.infoMarker)
}

// Apply returns the informational segments of text, concatenated in order,
// starting at the first done marker if there is one.
func (f *Filter) Apply(text string) string {
	var b strings.Builder
	for _, seg := range f.Segments(text) {
		if f.IsInfo(seg) {
			b.WriteString(seg)
		}
	}

	out := b.String()
	if i := strings.Index(out, f.doneMarker); i >= 0 {
		out = out[i:]
	}
	if f.redact {
		out = RedactAddresses(out)
	}
	return out
}
