package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
	"github.com/ungeschneuer/srl-allris-bot/internal/service/mocks"
)

type RunServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	history   *mocks.MockHistoryStore
	runLog    *mocks.MockRunLogStore
	publisher *mocks.MockPublisher
	events    *mocks.MockEventSink

	service *RunService
	logger  *slog.Logger
}

func (s *RunServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.history = mocks.NewMockHistoryStore(s.ctrl)
	s.runLog = mocks.NewMockRunLogStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.events = mocks.NewMockEventSink(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("test-source").AnyTimes()
	s.source.EXPECT().Name().Return("Test Source").AnyTimes()

	s.service = NewRunService(
		s.source,
		s.history,
		s.runLog,
		s.publisher,
		nil,
		s.logger,
	)
}

func (s *RunServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRunServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RunServiceTestSuite))
}

func (s *RunServiceTestSuite) expectRunStateUpdate(ctx context.Context) {
	s.runLog.EXPECT().Get(ctx, "test-source").Return(&domain.RunState{SourceID: "test-source"}, nil)
	s.runLog.EXPECT().Update(ctx, gomock.Any()).Return(nil)
}

func (s *RunServiceTestSuite) TestRun_NewPaper() {
	ctx := context.Background()

	papers := []domain.Paper{
		{
			ID:    "2024-001",
			Title: "Vorlage A",
			URL:   "https://example.org/papers/2024-001",
		},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "2024-001").Return(false, nil)
	s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil)
	s.history.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a domain.Announcement) error {
			s.Equal("2024-001", a.ItemID)
			s.Equal("post-1", a.PostRef)
			s.False(a.PostedAt.IsZero())
			return nil
		},
	)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Published)
	s.Equal(0, stats.Failed)
}

func (s *RunServiceTestSuite) TestRun_SkipsAlreadyAnnounced() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "2024-001", Title: "Vorlage A"},
		{ID: "2024-002", Title: "Vorlage B"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "2024-001").Return(true, nil)
	s.history.EXPECT().Contains(ctx, "2024-002").Return(false, nil)
	s.publisher.EXPECT().Dispatch(ctx, &papers[1]).Return("post-2", nil)
	s.history.EXPECT().Record(ctx, gomock.Any()).Return(nil)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Published)
}

func (s *RunServiceTestSuite) TestRun_NothingNewIsSilentSuccess() {
	ctx := context.Background()

	papers := []domain.Paper{{ID: "2024-001"}}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "2024-001").Return(true, nil)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(0, stats.New)
	s.Equal(0, stats.Published)
}

func (s *RunServiceTestSuite) TestRun_PreservesFetchOrder() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
		{ID: "3", Title: "C"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	for _, p := range papers {
		s.history.EXPECT().Contains(ctx, p.ID).Return(false, nil)
	}

	gomock.InOrder(
		s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil),
		s.publisher.EXPECT().Dispatch(ctx, &papers[1]).Return("post-2", nil),
		s.publisher.EXPECT().Dispatch(ctx, &papers[2]).Return("post-3", nil),
	)
	s.history.EXPECT().Record(ctx, gomock.Any()).Return(nil).Times(3)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(3, stats.Published)
}

func (s *RunServiceTestSuite) TestRun_PermanentFailureDoesNotBlockSiblings() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
		{ID: "3", Title: "C"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	for _, p := range papers {
		s.history.EXPECT().Contains(ctx, p.ID).Return(false, nil)
	}

	s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil)
	s.publisher.EXPECT().Dispatch(ctx, &papers[1]).Return("",
		&domain.PublishError{Kind: domain.Permanent, Err: errors.New("rejected")})
	s.publisher.EXPECT().Dispatch(ctx, &papers[2]).Return("post-3", nil)

	// Only the two successful dispatches are recorded.
	s.history.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a domain.Announcement) error {
			s.NotEqual("2", a.ItemID)
			return nil
		},
	).Times(2)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(3, stats.New)
	s.Equal(2, stats.Published)
	s.Equal(1, stats.Failed)
}

func (s *RunServiceTestSuite) TestRun_SourceErrorAbortsRun() {
	ctx := context.Background()

	s.source.EXPECT().Fetch(ctx).Return(nil, errors.New("connection refused"))

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Nil(stats)

	var srcErr *domain.SourceError
	s.ErrorAs(err, &srcErr)
}

func (s *RunServiceTestSuite) TestRun_StoreErrorAbortsBeforeAnyPublish() {
	ctx := context.Background()

	papers := []domain.Paper{{ID: "1"}, {ID: "2"}}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "1").Return(false,
		&domain.StoreError{Op: "contains", Err: errors.New("disk gone")})
	// No Dispatch expectation: zero publish calls must happen.

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Nil(stats)

	var storeErr *domain.StoreError
	s.ErrorAs(err, &storeErr)
}

func (s *RunServiceTestSuite) TestRun_ConflictIsFatal() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "1").Return(false, nil)
	s.history.EXPECT().Contains(ctx, "2").Return(false, nil)

	s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil)
	s.history.EXPECT().Record(ctx, gomock.Any()).Return(&domain.ConflictError{ItemID: "1"})
	// The second paper is never dispatched.

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.NotNil(stats)
	s.Equal(0, stats.Published)

	var conflict *domain.ConflictError
	s.ErrorAs(err, &conflict)
	s.Equal("1", conflict.ItemID)
}

func (s *RunServiceTestSuite) TestRun_RecordFailureStopsFurtherPublishing() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "1").Return(false, nil)
	s.history.EXPECT().Contains(ctx, "2").Return(false, nil)

	s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil)
	s.history.EXPECT().Record(ctx, gomock.Any()).Return(
		&domain.StoreError{Op: "record", Err: errors.New("disk full")})

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.NotNil(stats)
	s.Equal(0, stats.Published)
}

func (s *RunServiceTestSuite) TestRun_EventSinkFailureIsTolerated() {
	ctx := context.Background()

	service := NewRunService(
		s.source,
		s.history,
		s.runLog,
		s.publisher,
		s.events,
		s.logger,
	)

	papers := []domain.Paper{{ID: "1", Title: "A"}}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "1").Return(false, nil)
	s.publisher.EXPECT().Dispatch(ctx, &papers[0]).Return("post-1", nil)
	s.history.EXPECT().Record(ctx, gomock.Any()).Return(nil)
	s.events.EXPECT().Announced(ctx, &papers[0], gomock.Any()).Return(errors.New("broker down"))
	s.expectRunStateUpdate(ctx)

	stats, err := service.Run(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
}

func (s *RunServiceTestSuite) TestPreview_DoesNotPublishOrRecord() {
	ctx := context.Background()

	papers := []domain.Paper{
		{ID: "1", Title: "A"},
		{ID: "2", Title: "B"},
	}

	s.source.EXPECT().Fetch(ctx).Return(papers, nil)
	s.history.EXPECT().Contains(ctx, "1").Return(true, nil)
	s.history.EXPECT().Contains(ctx, "2").Return(false, nil)

	fresh, err := s.service.Preview(ctx)

	s.NoError(err)
	s.Len(fresh, 1)
	s.Equal("2", fresh[0].ID)
}

func (s *RunServiceTestSuite) TestRun_EmptyFetch() {
	ctx := context.Background()

	s.source.EXPECT().Fetch(ctx).Return(nil, nil)
	s.expectRunStateUpdate(ctx)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.Fetched)
	s.Equal(0, stats.New)
}
