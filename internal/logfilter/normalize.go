package logfilter

import (
	"strings"
	"unicode/utf8"
)

// Normalize converts raw log bytes to text and never fails. Each maximal
// invalid subpart becomes one U+FFFD: a truncated multi-byte sequence is a
// single replacement, and a stray byte that cannot start or continue one is
// its own replacement.
func Normalize(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	var b strings.Builder
	b.Grow(len(raw) + 16)
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			size = invalidSubpart(raw)
		} else {
			b.Write(raw[:size])
		}
		raw = raw[size:]
	}
	return b.String()
}

// invalidSubpart returns the length of the well-formed prefix of a UTF-8
// sequence starting at raw[0], which is known not to decode. It is at least 1.
func invalidSubpart(raw []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xBF)
	switch c := raw[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}

	n := 1
	for ; n <= need && n < len(raw); n++ {
		if raw[n] < lo || raw[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
	}
	return n
}
