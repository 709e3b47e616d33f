// Package chunk splits filtered log text into request-sized windows and
// reassembles the per-window completions in source order.
package chunk

import (
	"fmt"
	"unicode/utf8"
)

// Budget sizes windows so that preamble plus window fits half of the total
// allowance, leaving the rest for the response. Characters stand in for tokens.
type Budget struct {
	TotalTokens int
	Preamble    string
}

// InputIncrement is the number of source characters carried by each request.
func (b Budget) InputIncrement() int {
	return b.TotalTokens/2 - len(b.Preamble)
}

// OutputIncrement caps the size of each response.
func (b Budget) OutputIncrement() int {
	return b.TotalTokens - b.InputIncrement()
}

// Validate rejects budgets that leave no room for source text.
func (b Budget) Validate() error {
	if b.InputIncrement() <= 0 {
		return fmt.Errorf("token budget %d leaves no input room after a %d-character preamble",
			b.TotalTokens, len(b.Preamble))
	}
	return nil
}

// Window is the half-open byte range [Start, End) of one request.
type Window struct {
	Index int
	Start int
	End   int
}

// Len returns the window size in bytes.
func (w Window) Len() int { return w.End - w.Start }

// Plan partitions text into contiguous windows of at most increment bytes.
// A window end that would split a UTF-8 sequence is pulled back to the
// sequence start, unless that would leave the window empty.
func Plan(text string, increment int) []Window {
	if increment <= 0 {
		return nil
	}

	var windows []Window
	for pos := 0; pos < len(text); {
		end := min(pos+increment, len(text))
		for end < len(text) && end > pos+1 && !utf8.RuneStart(text[end]) {
			end--
		}
		windows = append(windows, Window{Index: len(windows), Start: pos, End: end})
		pos = end
	}
	return windows
}
