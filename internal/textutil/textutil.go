// Package textutil holds the rune-aware size helpers shared by every
// size-capped field in the pipeline.
package textutil

import "unicode/utf8"

// Ellipsis marks content cut by Truncate.
const Ellipsis = "…"

// Len counts characters, not bytes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate keeps the leading characters of s so the result, marker included,
// is at most limit characters long.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + Ellipsis
}

// Chunk splits s into ordered pieces of at most limit characters whose
// concatenation is s. A limit <= 0 yields s as a single piece.
func Chunk(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	runes := []rune(s)
	out := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		if cut := lineBreakBefore(runes, start, end); cut > start {
			end = cut
		}
		out = append(out, string(runes[start:end]))
		start = end
	}
	return out
}

// lineBreakBefore prefers splitting right after a newline in the second half
// of the window so chunks do not cut sentences when avoidable.
func lineBreakBefore(runes []rune, start, end int) int {
	half := start + (end-start)/2
	for i := end - 1; i >= half; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return -1
}
