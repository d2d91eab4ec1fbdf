// Package scorer assigns an additive relevance score to a located passage.
package scorer

import (
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/matcher"
)

// Weights are the points awarded per occurrence of each term class.
type Weights struct {
	Phrase  int `json:"phrase"`
	Keyword int `json:"keyword"`
}

// DefaultWeights rewards an exact phrase twice as much as a single keyword.
var DefaultWeights = Weights{Phrase: 20, Keyword: 10}

type Scorer struct {
	weights Weights
}

func New(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score compiles ts and scores paragraph.
func (s *Scorer) Score(paragraph string, ts analyzer.TermSet) int {
	return s.ScoreWith(paragraph, matcher.Compile(ts))
}

// ScoreWith sums phrase occurrences times the phrase weight and whole-word
// keyword occurrences times the keyword weight. Keyword hits inside a phrase
// hit are already paid for by the phrase and are not counted.
func (s *Scorer) ScoreWith(paragraph string, set *matcher.Set) int {
	score := 0
	var covered [][]int
	for _, re := range set.Phrases() {
		hits := re.FindAllStringIndex(paragraph, -1)
		score += len(hits) * s.weights.Phrase
		covered = append(covered, hits...)
	}
	for _, re := range set.Keywords() {
		for _, hit := range re.FindAllStringIndex(paragraph, -1) {
			if !within(hit, covered) {
				score += s.weights.Keyword
			}
		}
	}
	return score
}

func within(hit []int, spans [][]int) bool {
	for _, sp := range spans {
		if hit[0] >= sp[0] && hit[1] <= sp[1] {
			return true
		}
	}
	return false
}
