package locator

import (
	"strings"
	"unicode/utf8"
)

// SentenceTerminator ends a sentence for paragraph expansion. A period is a
// naive terminator: abbreviations and decimals split sentences early.
const SentenceTerminator = '.'

// SentenceBounds widens the match text[start:end] to the surrounding sentence.
// lo is just after the nearest terminator before start (or 0); hi is just
// after the first terminator from the last byte of the match on (or
// len(text)). Both sides are clamped to window bytes around the match and
// aligned to rune boundaries.
func SentenceBounds(text string, start, end, window int) (lo, hi int) {
	if i := strings.LastIndexByte(text[:start], SentenceTerminator); i >= 0 {
		lo = i + 1
	}
	hi = len(text)
	from := end - 1
	if from < start {
		from = start
	}
	if i := strings.IndexByte(text[from:], SentenceTerminator); i >= 0 {
		hi = from + i + 1
	}

	if window > 0 {
		if floor := start - window; lo < floor {
			lo = floor
		}
		if ceil := end + window; hi > ceil {
			hi = ceil
		}
	}
	for lo < len(text) && lo < start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	for hi < len(text) && hi > end && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return lo, hi
}
