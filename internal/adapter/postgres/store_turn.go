package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/turn"
)

// StoreTurn persists a completed turn. Turns are append-only; a duplicate ID
// is a programmer error and surfaces as a database error.
func (s *Store) StoreTurn(ctx context.Context, t *turn.Turn) error {
	const q = `
		INSERT INTO turns (id, ts, thought, tool, tool_input, tool_output, tool_error, observation, reflection)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var tool, input, output, toolErr *string
	if t.Action != nil {
		tool = &t.Action.Tool
		input = &t.Action.Input
		output = &t.Action.Output
		toolErr = &t.Action.Error
	}

	_, err := s.pool.Exec(ctx, q,
		t.ID, t.Timestamp, t.Thought, tool, input, output, toolErr, t.Observation, t.Reflection)
	if err != nil {
		return fmt.Errorf("store turn %s: %w", t.ID, err)
	}
	return nil
}

// GetRecentTurns returns the newest n turns, newest first.
func (s *Store) GetRecentTurns(ctx context.Context, n int) ([]turn.Turn, error) {
	const q = `
		SELECT id, ts, thought, tool, tool_input, tool_output, tool_error, observation, reflection
		FROM turns ORDER BY ts DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("get recent turns: %w", err)
	}
	defer rows.Close()

	var turns []turn.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// GetFirstTurn returns the oldest turn, used to compute days survived.
func (s *Store) GetFirstTurn(ctx context.Context) (*turn.Turn, error) {
	const q = `
		SELECT id, ts, thought, tool, tool_input, tool_output, tool_error, observation, reflection
		FROM turns ORDER BY ts ASC LIMIT 1`

	row := s.pool.QueryRow(ctx, q)
	t, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get first turn: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get first turn: %w", err)
	}
	return &t, nil
}

func scanTurn(row pgx.Row) (turn.Turn, error) {
	var t turn.Turn
	var tool, input, output, toolErr *string

	err := row.Scan(&t.ID, &t.Timestamp, &t.Thought, &tool, &input, &output, &toolErr, &t.Observation, &t.Reflection)
	if err != nil {
		return turn.Turn{}, err
	}

	if tool != nil {
		t.Action = &turn.Action{Tool: *tool}
		if input != nil {
			t.Action.Input = *input
		}
		if output != nil {
			t.Action.Output = *output
		}
		if toolErr != nil {
			t.Action.Error = *toolErr
		}
	}
	return t, nil
}
