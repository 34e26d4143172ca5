package domain

import "time"

// RunStats holds the summary of one fetch-diff-publish-record cycle.
type RunStats struct {
	SourceID  string
	Fetched   int
	New       int
	Published int
	Failed    int
	Duration  time.Duration
}
