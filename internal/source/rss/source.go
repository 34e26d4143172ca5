package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

const (
	SourceID   = "rss"
	SourceName = "Portal RSS feed"
)

// Config holds RSS source configuration.
type Config struct {
	FeedURL  string
	Lookback time.Duration
	Timeout  time.Duration
}

// Source fetches papers from a portal's RSS or Atom feed. Some council
// information systems publish one instead of (or alongside) an OParl API.
type Source struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	feedURL    string
	lookback   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new RSS source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		parser:   gofeed.NewParser(),
		feedURL:  cfg.FeedURL,
		lookback: cfg.Lookback,
		logger:   logger.With("source", SourceID),
		now:      time.Now,
	}
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// Fetch returns the feed entries within the lookback window, oldest first.
func (s *Source) Fetch(ctx context.Context) ([]domain.Paper, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "allrisbot/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	cutoff := s.now().Add(-s.lookback)

	var papers []domain.Paper
	for _, entry := range feed.Items {
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		// GUID is the feed's own stable identity; the link is the next best.
		id := entry.GUID
		if id == "" {
			id = link
		}
		if id == "" {
			s.logger.Warn("feed entry without guid or link", "title", entry.Title)
			continue
		}

		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		papers = append(papers, domain.Paper{
			ID:          id,
			Title:       entry.Title,
			URL:         link,
			PublishedAt: published,
		})
	}

	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]
		if !a.PublishedAt.IsZero() && !b.PublishedAt.IsZero() && !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})

	return papers, nil
}
