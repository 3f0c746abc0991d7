package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/outlive-sh/outlive/internal/domain"
)

// StoreState upserts a free-form agent state blob (e.g. the skill vector).
func (s *Store) StoreState(ctx context.Context, id, stateType string, data []byte) error {
	const q = `
		INSERT INTO agent_state (id, state_type, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET state_type = EXCLUDED.state_type, data = EXCLUDED.data, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, id, stateType, data); err != nil {
		return fmt.Errorf("store state %s: %w", id, err)
	}
	return nil
}

// GetState retrieves a state blob by ID.
func (s *Store) GetState(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM agent_state WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get state %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get state %s: %w", id, err)
	}
	return data, nil
}
