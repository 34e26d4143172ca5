package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context) ([]domain.Paper, error)
}

type HistoryStore interface {
	Contains(ctx context.Context, itemID string) (bool, error)
	Record(ctx context.Context, a domain.Announcement) error
}

type RunLogStore interface {
	Get(ctx context.Context, sourceID string) (*domain.RunState, error)
	Update(ctx context.Context, state *domain.RunState) error
}

type Publisher interface {
	Dispatch(ctx context.Context, paper *domain.Paper) (string, error)
	Close() error
}

type EventSink interface {
	Announced(ctx context.Context, paper *domain.Paper, a domain.Announcement) error
	Close() error
}
