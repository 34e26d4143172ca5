package oparl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

const (
	SourceID   = "oparl"
	SourceName = "ALLRIS OParl"
)

// Config holds OParl source configuration.
type Config struct {
	BaseURL        string
	PageSize       int
	MaxPages       int
	Lookback       time.Duration
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source fetches recently created papers from an OParl papers endpoint.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	pageSize       int
	maxPages       int
	lookback       time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// New creates a new OParl source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		lookback:       cfg.Lookback,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
		now:            time.Now,
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns a human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// Fetch returns the papers created within the lookback window, ordered
// oldest first. The order is deterministic: publication time when the
// portal provides one, numeric paper id otherwise.
func (s *Source) Fetch(ctx context.Context) ([]domain.Paper, error) {
	since := s.now().Add(-s.lookback)

	query := url.Values{}
	query.Set("filter[created]", since.UTC().Format(time.RFC3339))
	query.Set("pageSize", strconv.Itoa(s.pageSize))
	pageURL := s.baseURL + "/papers?" + query.Encode()

	var all []paperObject
	for page := 0; page < s.maxPages; page++ {
		resp, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, resp.Data...)

		s.logger.Debug("fetched page",
			"page", page,
			"papers", len(resp.Data),
			"total", len(all),
		)

		if resp.Links.Next == "" {
			break
		}
		pageURL = resp.Links.Next
	}

	papers := s.transform(all)
	sortPapers(papers)
	return papers, nil
}

func (s *Source) fetchPage(ctx context.Context, pageURL string) (*papersResponse, error) {
	var resp *papersResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doRequest(ctx, pageURL)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, pageURL string) (*papersResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "allrisbot/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var apiResp papersResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &apiResp, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(objects []paperObject) []domain.Paper {
	papers := make([]domain.Paper, 0, len(objects))

	for _, o := range objects {
		id := extractID(o.ID)
		if id == "" {
			// Without a stable id the paper cannot be deduplicated.
			s.logger.Warn("paper without extractable id", "oparl_id", o.ID)
			continue
		}

		paper := domain.Paper{
			ID:        id,
			Reference: o.Reference,
			Title:     o.Name,
			PaperType: o.PaperType,
			URL:       o.Web,
		}
		if paper.URL == "" {
			paper.URL = o.ID
		}
		if o.MainFile != nil {
			paper.FileURL = o.MainFile.AccessURL
		}

		if o.Created != "" {
			createdAt, err := time.Parse(time.RFC3339, o.Created)
			if err != nil {
				s.logger.Warn("failed to parse created date",
					"item_id", id,
					"created", o.Created,
				)
			} else {
				paper.PublishedAt = createdAt
			}
		}

		papers = append(papers, paper)
	}

	return papers
}

// extractID derives the stable paper id from the OParl object URL. ALLRIS
// deployments expose it either as an "id" query parameter or as the final
// numeric path segment.
func extractID(objectURL string) string {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return ""
	}

	if id := parsed.Query().Get("id"); id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			return id
		}
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if _, err := strconv.ParseInt(last, 10, 64); err == nil {
		return last
	}
	return ""
}

func sortPapers(papers []domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]
		if !a.PublishedAt.IsZero() && !b.PublishedAt.IsZero() && !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return numericID(a.ID) < numericID(b.ID)
	})
}

func numericID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
