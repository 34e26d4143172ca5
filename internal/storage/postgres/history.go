package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

// HistoryStore is the Postgres-backed announcement ledger, for deployments
// that already operate a shared database server.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Contains(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM announcements WHERE item_id = $1)", itemID)
	if err != nil {
		return false, &domain.StoreError{Op: "contains", Err: err}
	}
	return exists, nil
}

func (s *HistoryStore) Record(ctx context.Context, a domain.Announcement) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO announcements (item_id, posted_at, post_ref) VALUES ($1, $2, $3)",
		a.ItemID, a.PostedAt, a.PostRef)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return &domain.ConflictError{ItemID: a.ItemID}
		}
		return &domain.StoreError{Op: "record", Err: err}
	}
	return nil
}
