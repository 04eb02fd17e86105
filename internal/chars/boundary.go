// Package chars holds the UTF-8 char-boundary-safe slicing helpers every
// byte-index operation over model output must route through. Violating
// this discipline crashes on real LLM output containing emoji or other
// multi-byte runes.
package chars

import (
	"unicode"
	"unicode/utf8"
)

// FloorBoundary rounds i down to the start of the UTF-8 rune containing it,
// or to len(s) if i is at or past the end. i must be non-negative.
func FloorBoundary(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// FloorBoundaryBytes is FloorBoundary for a byte slice.
func FloorBoundaryBytes(s []byte, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// NextChunkEnd proposes the end of the next chunk of s starting at p, no
// more than target bytes long, snapped to a char boundary, then nudged
// backward to the nearest preceding whitespace rune within lookback bytes
// when one exists — preserving correctness for multi-byte whitespace like
// U+00A0 and U+2009 by advancing by the whitespace rune's byte length,
// never by 1.
func NextChunkEnd(s string, p, target, lookback int) int {
	if p >= len(s) {
		return len(s)
	}

	end := p + target
	if end > len(s) {
		end = len(s)
	}
	end = FloorBoundary(s, end)

	if end <= p {
		_, size := utf8.DecodeRuneInString(s[p:])
		if size == 0 {
			size = 1
		}
		end = p + size
		if end > len(s) {
			end = len(s)
		}
		return end
	}

	if end == len(s) {
		return end
	}

	windowStart := end - lookback
	if windowStart < p {
		windowStart = p
	}
	windowStart = FloorBoundary(s, windowStart)

	best := -1
	for i := windowStart; i < end; {
		r, size := utf8.DecodeRuneInString(s[i:])
		if size == 0 {
			break
		}
		next := i + size
		if unicode.IsSpace(r) && next <= end {
			best = next
		}
		i = next
	}
	if best > p {
		return best
	}
	return end
}
