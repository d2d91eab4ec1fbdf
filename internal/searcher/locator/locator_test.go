package locator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
)

func TestLocateWholeSentence(t *testing.T) {
	text := "An employer cannot withhold pay for more than a month."
	p, ok := Locate(text, analyzer.Analyze(`"withhold pay"`), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, text, p)
}

func TestLocateSentenceBetweenTerminators(t *testing.T) {
	text := "Intro sentence here. Police oversight agencies\n\n   accept complaints. Another one follows."
	p, ok := Locate(text, analyzer.Analyze("complaints"), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, "Police oversight agencies accept complaints.", p)
}

func TestLocateUsesFirstOccurrenceOnly(t *testing.T) {
	text := "First wage rule. Unrelated text. Second wage rule."
	p, ok := Locate(text, analyzer.Analyze("wage"), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, "First wage rule.", p)
}

func TestLocateKeywordWordBoundary(t *testing.T) {
	_, ok := Locate("The wagework programme ended.", analyzer.Analyze("wage"), DefaultWindow)
	assert.False(t, ok)

	p, ok := Locate("The wagework programme ended. The wage rose.", analyzer.Analyze("wage"), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, "The wage rose.", p)
}

func TestLocateNoMatch(t *testing.T) {
	_, ok := Locate("Police oversight agencies accept complaints.", analyzer.Analyze("xyzzy nonexistent"), DefaultWindow)
	assert.False(t, ok)

	_, ok = Locate("anything", analyzer.Analyze(""), DefaultWindow)
	assert.False(t, ok)
}

func TestLocatePhraseWithMetacharacters(t *testing.T) {
	text := "Deductions. Net pay (after tax)* is shown on the stub. End."
	p, ok := Locate(text, analyzer.Analyze(`"pay (after tax)*"`), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, "Net pay (after tax)* is shown on the stub.", p)
}

func TestLocateNoTerminatorRunsToTextEnds(t *testing.T) {
	text := "no terminators at all around the keyword here"
	p, ok := Locate(text, analyzer.Analyze("keyword"), DefaultWindow)
	require.True(t, ok)
	assert.Equal(t, text, p)
}

func TestLocateClampsToWindow(t *testing.T) {
	text := strings.Repeat("a", 50) + " target " + strings.Repeat("b", 50)
	p, ok := Locate(text, analyzer.Analyze("target"), 10)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 9)+" target "+strings.Repeat("b", 9), p)
}

func TestSentenceBounds(t *testing.T) {
	text := "One. Two three. Four"
	start := strings.Index(text, "three")
	lo, hi := SentenceBounds(text, start, start+len("three"), 0)
	assert.Equal(t, " Two three.", text[lo:hi])

	start = strings.Index(text, "Four")
	lo, hi = SentenceBounds(text, start, start+4, 0)
	assert.Equal(t, " Four", text[lo:hi])

	lo, hi = SentenceBounds(text, 0, 3, 0)
	assert.Equal(t, "One.", text[lo:hi])
}

func TestSentenceBoundsMatchEndingInTerminator(t *testing.T) {
	text := "Call 911. Then wait. Later."
	lo, hi := SentenceBounds(text, 5, 9, 0)
	assert.Equal(t, "Call 911.", text[lo:hi])
}

func TestSentenceBoundsKeepsRunes(t *testing.T) {
	text := strings.Repeat("é", 20) + "mot" + strings.Repeat("ü", 20)
	start := strings.Index(text, "mot")
	lo, hi := SentenceBounds(text, start, start+3, 5)
	assert.True(t, utf8.ValidString(text[lo:hi]))
	assert.Contains(t, text[lo:hi], "mot")
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "a b c", Collapse("  a \n\t b   c  "))
	assert.Equal(t, "", Collapse(" \n "))
}
