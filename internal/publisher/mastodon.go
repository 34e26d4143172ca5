package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
)

// Config holds Mastodon publisher configuration.
type Config struct {
	ServerURL       string
	AccessToken     string
	MaxChars        int
	Hashtags        []string
	MinPostInterval time.Duration
	Timeout         time.Duration
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// Mastodon posts paper announcements to a Mastodon timeline.
//
// Dispatch retries transient failures (429, 5xx, network errors) with
// doubling backoff and spaces successive posts with a rate limiter so a
// burst of new papers does not trip the instance's posting limits.
type Mastodon struct {
	httpClient     *http.Client
	serverURL      string
	accessToken    string
	maxChars       int
	hashtags       []string
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// NewMastodon creates a new Mastodon publisher.
func NewMastodon(cfg Config, logger *slog.Logger) *Mastodon {
	return &Mastodon{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		serverURL:      strings.TrimRight(cfg.ServerURL, "/"),
		accessToken:    cfg.AccessToken,
		maxChars:       cfg.MaxChars,
		hashtags:       cfg.Hashtags,
		limiter:        rate.NewLimiter(rate.Every(cfg.MinPostInterval), 1),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("publisher", "mastodon"),
	}
}

// Dispatch formats and posts the announcement for paper, returning the id of
// the created status.
func (m *Mastodon) Dispatch(ctx context.Context, paper *domain.Paper) (string, error) {
	status := BuildStatus(paper, m.maxChars, m.hashtags)

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", err
		}

		ref, err := m.postStatus(ctx, status, paper.ID)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if !domain.IsTransientPublish(err) {
			return "", err
		}
		if attempt == m.maxAttempts {
			break
		}

		backoff := m.calculateBackoff(attempt)
		m.logger.Warn("post failed, retrying",
			"item_id", paper.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *Mastodon) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (m *Mastodon) postStatus(ctx context.Context, status, idempotencyKey string) (string, error) {
	form := url.Values{}
	form.Set("status", status)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.serverURL+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.PublishError{Kind: domain.Permanent, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)
	// The instance dedupes retried posts carrying the same key, which papers
	// over the publish-then-record crash window.
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &domain.PublishError{Kind: domain.Transient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &domain.PublishError{
			Kind: domain.Transient,
			Err:  fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	default:
		return "", &domain.PublishError{
			Kind: domain.Permanent,
			Err:  fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	var posted statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return "", &domain.PublishError{
			Kind: domain.Permanent,
			Err:  fmt.Errorf("decode response: %w", err),
		}
	}

	return posted.ID, nil
}

func (m *Mastodon) calculateBackoff(attempt int) time.Duration {
	backoff := m.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > m.maxBackoff {
		backoff = m.maxBackoff
	}
	return backoff
}
