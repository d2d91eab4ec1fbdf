package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
)

// Match is the located passage of one document and its score.
type Match struct {
	Document  *corpus.Document
	Ordinal   int
	Paragraph string
	Score     int
}

// Result is what callers of search receive.
type Result struct {
	FileName string `json:"fileName"`
	Snippet  string `json:"snippet"`
	Score    int    `json:"score"`
	NumPages int    `json:"numPages,omitempty"`
}

// Policy decides which matches are returned.
type Policy struct {
	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore int `json:"min_score"`
	// TopN caps the result count. Zero or less means no cap.
	TopN int `json:"top_n"`
}

// Rank orders matches by score, best first, keeping corpus order among equal
// scores, then applies the threshold and the cap. It never returns nil.
func Rank(matches []Match, minScore, topN int) []Result {
	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Ordinal < sorted[j].Ordinal
	})

	results := make([]Result, 0, len(sorted))
	for _, m := range sorted {
		if m.Score < minScore {
			break
		}
		if topN > 0 && len(results) == topN {
			break
		}
		results = append(results, Result{
			FileName: m.Document.FileName,
			Snippet:  m.Paragraph,
			Score:    m.Score,
			NumPages: m.Document.NumPages,
		})
	}
	return results
}

// Apply ranks matches under p.
func (p Policy) Apply(matches []Match) []Result {
	return Rank(matches, p.MinScore, p.TopN)
}
