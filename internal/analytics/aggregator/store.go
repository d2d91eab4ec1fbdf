// Package aggregator persists analytics snapshots in PostgreSQL and runs the
// periodic snapshot loop.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS search_analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	searches    BIGINT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store writes and reads snapshots through database/sql.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_analytics_snapshots (data, searches, captured_at) VALUES ($1, $2, $3)`,
		data, stats.TotalSearches, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM search_analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM search_analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// StatsSource yields the stats to persist.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Saver is what RunPeriodic writes to.
type Saver interface {
	SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error
}

// RunPeriodic saves a snapshot every interval until ctx is done, then saves
// one last time. It blocks.
func RunPeriodic(ctx context.Context, saver Saver, src StatsSource, interval time.Duration) {
	log := slog.Default().With("component", "analytics-snapshots")
	save := func(ctx context.Context) {
		err := resilience.Retry(ctx, "analytics-snapshot", resilience.RetryConfig{MaxAttempts: 2}, func() error {
			return saver.SaveSnapshot(ctx, src.Stats())
		})
		if err != nil {
			log.Error("snapshot failed", "error", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("periodic snapshots started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			save(ctx)
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			save(fctx)
			cancel()
			return
		}
	}
}
