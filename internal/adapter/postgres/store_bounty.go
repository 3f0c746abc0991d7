package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/database"
)

const bountyColumns = `id, source, title, description, reward_amount, reward_token,
	deadline, url, skills, status, discovered_at, claimed_at, metadata`

// GetBounties returns bounties matching the filter, newest first.
func (s *Store) GetBounties(ctx context.Context, filter database.BountyFilter) ([]bounty.Bounty, error) {
	q := `SELECT ` + bountyColumns + ` FROM bounties WHERE 1=1`
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Source != nil {
		args = append(args, string(*filter.Source))
		q += fmt.Sprintf(" AND source = $%d", len(args))
	}
	q += " ORDER BY discovered_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get bounties: %w", err)
	}
	defer rows.Close()

	var result []bounty.Bounty
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bounty: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// GetBounty retrieves one bounty by ID.
func (s *Store) GetBounty(ctx context.Context, id string) (*bounty.Bounty, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bountyColumns+` FROM bounties WHERE id = $1`, id)

	b, err := scanBounty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get bounty %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get bounty %s: %w", id, err)
	}
	return &b, nil
}

// StoreBounties upserts scanned bounties. A re-scan overwrites the stored
// status (this is the only path that may revert claimed back to open), but
// completed records are terminal and never touched.
func (s *Store) StoreBounties(ctx context.Context, bounties []bounty.Bounty) error {
	const q = `
		INSERT INTO bounties (` + bountyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			reward_amount = EXCLUDED.reward_amount,
			reward_token = EXCLUDED.reward_token,
			deadline = EXCLUDED.deadline,
			url = EXCLUDED.url,
			skills = EXCLUDED.skills,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata
		WHERE bounties.status <> 'completed'`

	for i := range bounties {
		b := &bounties[i]
		if err := b.Validate(); err != nil {
			return fmt.Errorf("store bounty %s: %w", b.ID, err)
		}

		meta, err := json.Marshal(b.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", b.ID, err)
		}
		skills := b.Skills
		if skills == nil {
			skills = []string{}
		}

		_, err = s.pool.Exec(ctx, q,
			b.ID, b.Source, b.Title, b.Description, b.RewardAmount, b.RewardToken,
			b.Deadline, b.URL, skills, b.Status, b.DiscoveredAt, b.ClaimedAt, meta)
		if err != nil {
			return fmt.Errorf("store bounty %s: %w", b.ID, err)
		}
	}
	return nil
}

// UpdateBountyStatus moves a bounty to a new status, enforcing the forward
// transition rule at the store boundary.
func (s *Store) UpdateBountyStatus(ctx context.Context, id string, status bounty.Status, claimedAt *time.Time) error {
	current, err := s.GetBounty(ctx, id)
	if err != nil {
		return err
	}

	if !bounty.CanTransition(current.Status, status, false) {
		return fmt.Errorf("update bounty %s: %s -> %s: %w", id, current.Status, status, domain.ErrConflict)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE bounties SET status = $2, claimed_at = COALESCE($3, claimed_at) WHERE id = $1`,
		id, status, claimedAt)
	if err != nil {
		return fmt.Errorf("update bounty %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update bounty %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanBounty(row pgx.Row) (bounty.Bounty, error) {
	var b bounty.Bounty
	var meta []byte
	var reward int64

	err := row.Scan(&b.ID, &b.Source, &b.Title, &b.Description, &reward, &b.RewardToken,
		&b.Deadline, &b.URL, &b.Skills, &b.Status, &b.DiscoveredAt, &b.ClaimedAt, &meta)
	if err != nil {
		return bounty.Bounty{}, err
	}

	b.RewardAmount = uint64(reward)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.Metadata); err != nil {
			return bounty.Bounty{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return b, nil
}
