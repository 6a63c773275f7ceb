package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modelswap/internal/rollout"
)

// ErrNotFound is returned by Get for an unknown rollout id.
var ErrNotFound = errors.New("rollout not found")

// DefaultListLimit bounds List when limit is not positive.
const DefaultListLimit = 20

// Repo stores rollout outcomes. It implements [rollout.Recorder].
type Repo struct {
	DB *sql.DB
}

var _ rollout.Recorder = (*Repo)(nil)

// Record inserts o. Recording the same id twice replaces the earlier row.
func (r *Repo) Record(ctx context.Context, o rollout.Outcome) error {
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("record rollout: empty id")
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO rollouts (id, artifact_id, success, reason, started_at, finished_at, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ArtifactID, o.Success, string(o.Reason),
		o.StartedAt.UnixNano(), o.FinishedAt.UnixNano(), string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert rollout: %w", err)
	}
	return nil
}

// Get loads one outcome by id.
func (r *Repo) Get(ctx context.Context, id string) (rollout.Outcome, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT outcome FROM rollouts WHERE id = ?`, id)
	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("rollout %q: %w", id, ErrNotFound)
	}
	return o, err
}

// List returns the most recent outcomes, newest first.
func (r *Repo) List(ctx context.Context, limit int) ([]rollout.Outcome, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT outcome FROM rollouts ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rollouts: %w", err)
	}
	defer rows.Close()

	var out []rollout.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(s scanner) (rollout.Outcome, error) {
	var o rollout.Outcome
	var raw string
	if err := s.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scan rollout: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return o, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return o, nil
}
