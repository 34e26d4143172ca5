package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

type RunLogStore struct {
	db *sqlx.DB
}

func NewRunLogStore(db *sqlx.DB) *RunLogStore {
	return &RunLogStore{db: db}
}

func (s *RunLogStore) Get(ctx context.Context, sourceID string) (*domain.RunState, error) {
	var state domain.RunState
	err := s.db.GetContext(ctx, &state,
		"SELECT id, source_id, last_run_at, total_published FROM run_state WHERE source_id = ?",
		sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// First run for this source.
		return &domain.RunState{
			SourceID:  sourceID,
			LastRunAt: time.Time{},
		}, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get run state", Err: err}
	}
	return &state, nil
}

func (s *RunLogStore) Update(ctx context.Context, state *domain.RunState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_state (source_id, last_run_at, total_published)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			total_published = excluded.total_published`,
		state.SourceID, state.LastRunAt, state.TotalPublished)
	if err != nil {
		return &domain.StoreError{Op: "update run state", Err: err}
	}
	return nil
}
