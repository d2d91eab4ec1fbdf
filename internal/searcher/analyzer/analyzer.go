// Package analyzer turns a raw query into the terms the searcher matches:
// exact phrases the user delimited and loose keywords.
package analyzer

import (
	"regexp"
	"strings"
	"unicode"
)

var quotedPhrase = regexp.MustCompile(`"([^"]+)"`)

// TermSet is the analysed form of one query.
type TermSet struct {
	// Phrases keep the user's casing; matching is case-insensitive.
	Phrases []string `json:"phrases"`
	// Keywords are lowercase, a-z only and longer than two letters.
	Keywords []string `json:"keywords"`
}

// Empty reports whether the set has no terms at all.
func (ts TermSet) Empty() bool {
	return len(ts.Phrases) == 0 && len(ts.Keywords) == 0
}

// PatternTerms returns the terms used to locate a passage: phrases when any
// exist, otherwise keywords. The flag reports whether keywords were chosen.
func (ts TermSet) PatternTerms() (terms []string, keywords bool) {
	if len(ts.Phrases) > 0 {
		return ts.Phrases, false
	}
	return ts.Keywords, true
}

// Analyze extracts phrases and keywords from raw. A blank query gives an
// empty TermSet; any other query gives at least one term.
func Analyze(raw string) TermSet {
	ts := TermSet{
		Phrases:  make([]string, 0),
		Keywords: make([]string, 0),
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ts
	}

	seen := make(map[string]struct{})
	addPhrase := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		ts.Phrases = append(ts.Phrases, p)
	}

	for _, m := range quotedPhrase.FindAllStringSubmatch(raw, -1) {
		addPhrase(m[1])
	}
	if strings.Contains(raw, ",") {
		for _, segment := range strings.Split(raw, ",") {
			addPhrase(strings.Trim(strings.TrimSpace(segment), `"`))
		}
	}

	ts.Keywords = Keywords(raw)

	if ts.Empty() {
		ts.Phrases = append(ts.Phrases, trimmed)
	}
	return ts
}

// Keywords lowercases raw, drops every rune that is not a-z or whitespace and
// returns the distinct remaining words longer than two letters, in order.
func Keywords(raw string) []string {
	cleaned := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, raw)

	words := strings.Fields(cleaned)
	keywords := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}
