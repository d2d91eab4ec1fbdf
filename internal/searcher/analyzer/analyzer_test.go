package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		phrases  []string
		keywords []string
	}{
		{
			name:     "empty",
			query:    "",
			phrases:  []string{},
			keywords: []string{},
		},
		{
			name:     "whitespace only",
			query:    "   \t\n",
			phrases:  []string{},
			keywords: []string{},
		},
		{
			name:     "bare words are keywords only",
			query:    "minimum wage Alberta",
			phrases:  []string{},
			keywords: []string{"minimum", "wage", "alberta"},
		},
		{
			name:     "quoted phrase keeps case",
			query:    `"Withhold Pay"`,
			phrases:  []string{"Withhold Pay"},
			keywords: []string{"withhold", "pay"},
		},
		{
			name:     "comma separated segments",
			query:    "overtime pay, holiday pay ,  ,vacation",
			phrases:  []string{"overtime pay", "holiday pay", "vacation"},
			keywords: []string{"overtime", "pay", "holiday", "vacation"},
		},
		{
			name:     "quoted and comma phrases deduplicate",
			query:    `"withhold pay", "final cheque"`,
			phrases:  []string{"withhold pay", "final cheque"},
			keywords: []string{"withhold", "pay", "final", "cheque"},
		},
		{
			name:     "short tokens and digits dropped",
			query:    "Is it ok to work 12 hours?",
			phrases:  []string{},
			keywords: []string{"work", "hours"},
		},
		{
			name:     "punctuation joins word fragments",
			query:    "employer's rights",
			phrases:  []string{},
			keywords: []string{"employers", "rights"},
		},
		{
			name:     "falls back to the whole query",
			query:    " ?? 42 ",
			phrases:  []string{"?? 42"},
			keywords: []string{},
		},
		{
			name:     "regex metacharacters are kept verbatim",
			query:    `"pay (net)*"`,
			phrases:  []string{"pay (net)*"},
			keywords: []string{"pay", "net"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := Analyze(tc.query)
			assert.Equal(t, tc.phrases, ts.Phrases)
			assert.Equal(t, tc.keywords, ts.Keywords)
		})
	}
}

func TestAnalyzeNeverEmptyForNonBlankQuery(t *testing.T) {
	for _, q := range []string{"a", "!!", `""`, ",", "x y z", "中文"} {
		assert.False(t, Analyze(q).Empty(), "query %q", q)
	}
	assert.True(t, Analyze(" ").Empty())
}

func TestPatternTerms(t *testing.T) {
	terms, kw := Analyze("police oversight").PatternTerms()
	assert.True(t, kw)
	assert.Equal(t, []string{"police", "oversight"}, terms)

	terms, kw = Analyze(`complaints about "police oversight"`).PatternTerms()
	assert.False(t, kw)
	assert.Equal(t, []string{"police oversight"}, terms)
}

func TestKeywordsDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"pay", "day"}, Keywords("Pay pay PAY day"))
}
