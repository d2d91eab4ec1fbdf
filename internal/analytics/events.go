// Package analytics records what users search for and how the corpus
// behaves. Events flow either through Kafka (Collector publishes, Aggregator
// consumes) or straight into an in-process Aggregator.
package analytics

import "time"

type EventType string

const (
	EventSearch        EventType = "search"
	EventZeroResult    EventType = "zero_result"
	EventEmptyQuery    EventType = "empty_query"
	EventSearchError   EventType = "search_error"
	EventSearchTimeout EventType = "search_timeout"
	EventCorpusReload  EventType = "corpus_reload"
	EventReloadFailed  EventType = "corpus_reload_failed"
)

// Event is the single wire shape for every analytics record. Search fields
// are empty on reload events and the other way round.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	LatencyMs float64   `json:"latency_ms"`

	Query      string   `json:"query,omitempty"`
	Phrases    []string `json:"phrases,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Candidates int      `json:"candidates,omitempty"`
	Returned   int      `json:"returned,omitempty"`
	TopScore   int      `json:"top_score,omitempty"`
	TopFile    string   `json:"top_file,omitempty"`
	CacheHit   bool     `json:"cache_hit,omitempty"`

	Trigger    string `json:"trigger,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	Documents  int    `json:"documents,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IsSearch reports whether e describes a query rather than a reload.
func (e Event) IsSearch() bool {
	switch e.Type {
	case EventSearch, EventZeroResult, EventEmptyQuery, EventSearchError, EventSearchTimeout:
		return true
	}
	return false
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(e Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Track(Event) {}
