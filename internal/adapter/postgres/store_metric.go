package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/outlive-sh/outlive/internal/port/database"
)

// StoreMetric appends one metric sample.
func (s *Store) StoreMetric(ctx context.Context, name string, value float64) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO metrics (name, value) VALUES ($1, $2)`, name, value); err != nil {
		return fmt.Errorf("store metric %s: %w", name, err)
	}
	return nil
}

// GetStats aggregates turn history and metric samples since the given time.
func (s *Store) GetStats(ctx context.Context, since time.Time) (*database.Stats, error) {
	stats := &database.Stats{}

	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE tool_error IS NOT NULL AND tool_error <> '')
		FROM turns WHERE ts >= $1`, since).
		Scan(&stats.TurnCount, &stats.FailedTurns)
	if err != nil {
		return nil, fmt.Errorf("stats turns: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(value) FILTER (WHERE name = 'earnings'), 0)
		FROM metrics WHERE ts >= $1`, since).
		Scan(&stats.MetricPoints, &stats.TotalEarned)
	if err != nil {
		return nil, fmt.Errorf("stats metrics: %w", err)
	}

	return stats, nil
}

// Cleanup deletes turns and metrics older than the given number of days.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var deleted int64
	tag, err := s.pool.Exec(ctx, `DELETE FROM turns WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup turns: %w", err)
	}
	deleted += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM metrics WHERE ts < $1`, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("cleanup metrics: %w", err)
	}
	deleted += tag.RowsAffected()

	return deleted, nil
}
