// Package tracing records in-process span trees for a request and writes
// them to slog when the request finishes. There is no exporter; spans only
// exist to break a slow query down into its stages in the logs.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage. Children are stages started under it.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []slog.Attr
}

// Start opens a span under the one carried by ctx, or a new root span with
// traceID when ctx carries none.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

// Child opens a span only when ctx already carries one. The returned span
// is nil otherwise, and every method on a nil span is a no-op.
func Child(ctx context.Context, name string) (context.Context, *Span) {
	if FromContext(ctx) == nil {
		return ctx, nil
	}
	return Start(ctx, name, "")
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants at debug level, one record per
// span, depth first.
func (s *Span) Log(ctx context.Context, logger *slog.Logger) {
	if s == nil || !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, logger, 0)
}

func (s *Span) log(ctx context.Context, logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []slog.Attr{
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Float64("duration_ms", float64(s.Duration.Microseconds())/1000),
		slog.Int("depth", depth),
	}
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(ctx, slog.LevelDebug, "span", attrs...)
	for _, c := range children {
		c.log(ctx, logger, depth+1)
	}
}
