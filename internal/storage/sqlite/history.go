package sqlite

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

// HistoryStore is the durable ledger of announced papers. Rows are only ever
// appended; one row per item id, enforced by the primary key.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Contains(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM announcements WHERE item_id = ?)", itemID)
	if err != nil {
		return false, &domain.StoreError{Op: "contains", Err: err}
	}
	return exists, nil
}

func (s *HistoryStore) Record(ctx context.Context, a domain.Announcement) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO announcements (item_id, posted_at, post_ref) VALUES (?, ?, ?)",
		a.ItemID, a.PostedAt, a.PostRef)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &domain.ConflictError{ItemID: a.ItemID}
		}
		return &domain.StoreError{Op: "record", Err: err}
	}
	return nil
}
