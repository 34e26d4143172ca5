package service

import (
	"context"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

// selectNew returns the papers whose id is not yet in history, preserving the
// order of fetched. It never writes to the store; an empty result is normal.
func selectNew(ctx context.Context, fetched []domain.Paper, history HistoryStore) ([]domain.Paper, error) {
	var fresh []domain.Paper
	for _, p := range fetched {
		known, err := history.Contains(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !known {
			fresh = append(fresh, p)
		}
	}
	return fresh, nil
}
