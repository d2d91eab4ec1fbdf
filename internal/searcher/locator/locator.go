// Package locator finds the passage of a document that best answers a query:
// the sentence around the first occurrence of any query term.
package locator

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/matcher"
)

// DefaultWindow is the context, in bytes, kept on each side of a match when
// no sentence terminator is closer.
const DefaultWindow = 500

// Locate returns the paragraph around the first term of ts in text.
func Locate(text string, ts analyzer.TermSet, window int) (string, bool) {
	return LocateWith(text, matcher.Compile(ts), window)
}

// LocateWith is Locate with patterns compiled once per query.
func LocateWith(text string, set *matcher.Set, window int) (string, bool) {
	re := set.Locate()
	if re == nil {
		return "", false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	lo, hi := SentenceBounds(text, loc[0], loc[1], window)
	paragraph := Collapse(text[lo:hi])
	if paragraph == "" {
		return "", false
	}
	return paragraph, true
}

// Collapse replaces whitespace runs with a single space and trims the ends.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
