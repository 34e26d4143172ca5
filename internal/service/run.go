package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

// RunService owns one fetch-diff-publish-record cycle.
//
// Items are announced publish-first, record-second: if the process dies
// between the two, the next run re-fetches the item and posts it again. A
// rare duplicate is accepted over silently losing an announcement, which is
// what recording first would risk.
type RunService struct {
	source    Source
	history   HistoryStore
	runLog    RunLogStore
	publisher Publisher
	events    EventSink
	logger    *slog.Logger
}

func NewRunService(
	source Source,
	history HistoryStore,
	runLog RunLogStore,
	publisher Publisher,
	events EventSink,
	logger *slog.Logger,
) *RunService {
	return &RunService{
		source:    source,
		history:   history,
		runLog:    runLog,
		publisher: publisher,
		events:    events,
		logger:    logger.With("source", source.ID()),
	}
}

// Run performs one cycle and returns its summary. A nil stats return means
// the run aborted before anything was published or recorded.
func (s *RunService) Run(ctx context.Context) (*domain.RunStats, error) {
	startTime := time.Now()
	s.logger.Info("starting run", "source_name", s.source.Name())

	papers, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, &domain.SourceError{Err: err}
	}
	s.logger.Info("fetched papers", "count", len(papers))

	stats := &domain.RunStats{
		SourceID: s.source.ID(),
		Fetched:  len(papers),
	}

	// Every Contains call happens here, before the first dispatch. A store
	// failure therefore aborts the run with zero publish calls made.
	fresh, err := selectNew(ctx, papers, s.history)
	if err != nil {
		return nil, err
	}
	stats.New = len(fresh)

	if len(fresh) == 0 {
		if err := s.updateRunState(ctx, stats); err != nil {
			return stats, fmt.Errorf("update run state: %w", err)
		}
		stats.Duration = time.Since(startTime)
		s.logger.Info("no new papers", "fetched", stats.Fetched)
		return stats, nil
	}
	s.logger.Info("new papers to announce", "count", len(fresh))

	for i := range fresh {
		paper := &fresh[i]

		postRef, err := s.publisher.Dispatch(ctx, paper)
		if err != nil {
			if ctx.Err() != nil {
				stats.Duration = time.Since(startTime)
				return stats, ctx.Err()
			}
			// One paper failing must not block the rest of the run.
			stats.Failed++
			s.logger.Error("dispatch failed",
				"item_id", paper.ID,
				"title", paper.Title,
				"error", err,
			)
			continue
		}

		a := domain.Announcement{
			ItemID:   paper.ID,
			PostedAt: time.Now().UTC(),
			PostRef:  postRef,
		}
		if err := s.history.Record(ctx, a); err != nil {
			stats.Duration = time.Since(startTime)
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				// Double-record means the diff and the store disagree.
				// That is a bug, not a condition to work around.
				s.logger.Error("announcement conflict", "item_id", paper.ID)
				return stats, err
			}
			// Already posted but not recorded: the next run will duplicate
			// this announcement. Stop before publishing anything further
			// that also cannot be recorded.
			s.logger.Error("record failed after successful dispatch",
				"item_id", paper.ID,
				"post_ref", postRef,
				"error", err,
			)
			return stats, err
		}
		stats.Published++

		s.logger.Info("announced paper",
			"item_id", paper.ID,
			"title", paper.Title,
			"post_ref", postRef,
		)

		if s.events != nil {
			if err := s.events.Announced(ctx, paper, a); err != nil {
				s.logger.Warn("announcement event not emitted",
					"item_id", paper.ID,
					"error", err,
				)
			}
		}
	}

	if err := s.updateRunState(ctx, stats); err != nil {
		stats.Duration = time.Since(startTime)
		return stats, fmt.Errorf("update run state: %w", err)
	}

	stats.Duration = time.Since(startTime)
	s.logger.Info("run completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"published", stats.Published,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return stats, nil
}

// Preview returns the papers a run would announce right now, without
// dispatching or recording anything.
func (s *RunService) Preview(ctx context.Context) ([]domain.Paper, error) {
	papers, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, &domain.SourceError{Err: err}
	}
	return selectNew(ctx, papers, s.history)
}

func (s *RunService) updateRunState(ctx context.Context, stats *domain.RunStats) error {
	if s.runLog == nil {
		return nil
	}

	state, err := s.runLog.Get(ctx, s.source.ID())
	if err != nil {
		return err
	}

	state.SourceID = s.source.ID()
	state.LastRunAt = time.Now().UTC()
	state.TotalPublished += int64(stats.Published)

	return s.runLog.Update(ctx, state)
}
