package domain

import "time"

// Paper is one public record fetched from the council information system.
type Paper struct {
	ID          string // stable portal identifier, invariant across fetches
	Reference   string // council reference number (e.g. "VII-DS-09661")
	Title       string
	PaperType   string
	URL         string // canonical web link into the portal
	FileURL     string // main document PDF, optional
	PublishedAt time.Time // ordering only, zero when the portal omits it
}

// Announcement is the durable evidence that a paper was posted.
// Created only after the publisher confirmed dispatch; never mutated.
type Announcement struct {
	ItemID   string    `db:"item_id"`
	PostedAt time.Time `db:"posted_at"`
	PostRef  string    `db:"post_ref"`
}

// RunState tracks per-source bookkeeping across invocations.
type RunState struct {
	ID             int64     `db:"id"`
	SourceID       string    `db:"source_id"`
	LastRunAt      time.Time `db:"last_run_at"`
	TotalPublished int64     `db:"total_published"`
}
