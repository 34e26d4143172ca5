package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Ratsinformation</title>
	<item>
		<title>Vorlage B</title>
		<link>https://example.org/vo?id=2</link>
		<guid>https://example.org/vo?id=2</guid>
		<pubDate>Sat, 16 Mar 2024 10:00:00 GMT</pubDate>
	</item>
	<item>
		<title>Vorlage A</title>
		<link>https://example.org/vo?id=1</link>
		<guid>https://example.org/vo?id=1</guid>
		<pubDate>Fri, 15 Mar 2024 10:00:00 GMT</pubDate>
	</item>
</channel>
</rss>`

func newTestSource(t *testing.T, feedURL string) *Source {
	t.Helper()
	src := New(Config{
		FeedURL:  feedURL,
		Lookback: 24 * time.Hour,
		Timeout:  5 * time.Second,
	}, testLogger())
	// Pin "now" so the fixture dates stay inside the lookback window.
	src.now = func() time.Time {
		return time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	}
	return src
}

func TestFetch_ParsesAndOrdersFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	papers, err := newTestSource(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, papers, 2)

	// Oldest first, regardless of feed order.
	assert.Equal(t, "Vorlage A", papers[0].Title)
	assert.Equal(t, "Vorlage B", papers[1].Title)
	assert.Equal(t, "https://example.org/vo?id=1", papers[0].ID)
	assert.Equal(t, "https://example.org/vo?id=1", papers[0].URL)
}

func TestFetch_SkipsEntriesOutsideLookback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	src := newTestSource(t, srv.URL)
	// Move "now" far past both entries.
	src.now = func() time.Time {
		return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	}

	papers, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestFetch_ErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestSource(t, srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetch_ErrorOnMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a feed")
	}))
	defer srv.Close()

	_, err := newTestSource(t, srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}
