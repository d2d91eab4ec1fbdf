// Package matcher compiles query terms into case-insensitive patterns. Every
// term is escaped with regexp.QuoteMeta before compilation, so user input is
// only ever matched literally.
package matcher

import (
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
)

// Set holds the compiled patterns for one TermSet. It is safe for concurrent
// use by many documents of the same query.
type Set struct {
	locate   *regexp.Regexp
	phrases  []*regexp.Regexp
	keywords []*regexp.Regexp
}

// Compile builds the patterns for ts. An empty TermSet yields a Set that
// matches nothing.
func Compile(ts analyzer.TermSet) *Set {
	s := &Set{
		phrases:  make([]*regexp.Regexp, 0, len(ts.Phrases)),
		keywords: make([]*regexp.Regexp, 0, len(ts.Keywords)),
	}
	for _, p := range ts.Phrases {
		s.phrases = append(s.phrases, Literal(p))
	}
	for _, k := range ts.Keywords {
		s.keywords = append(s.keywords, Word(k))
	}
	terms, keywords := ts.PatternTerms()
	s.locate = Alternation(terms, keywords)
	return s
}

// Locate returns the pattern that finds the first relevant position in a
// document, or nil when there are no terms.
func (s *Set) Locate() *regexp.Regexp { return s.locate }

func (s *Set) Phrases() []*regexp.Regexp { return s.phrases }

func (s *Set) Keywords() []*regexp.Regexp { return s.keywords }

// Literal matches term anywhere, ignoring case.
func Literal(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
}

// Word matches term as a whole word, ignoring case.
func Word(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

// Alternation matches any of terms, optionally as whole words. It returns nil
// for an empty list.
func Alternation(terms []string, wholeWords bool) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) == 0 {
		return nil
	}
	expr := `(?:` + strings.Join(quoted, "|") + `)`
	if wholeWords {
		expr = `\b` + expr + `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}
