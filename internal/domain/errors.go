package domain

import (
	"errors"
	"fmt"
)

// SourceError wraps any fetch or parse failure of the source adapter.
// A run that hits one aborts before anything is published or recorded.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source: %v", e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// StoreError wraps a history store I/O failure. The run aborts before any
// publish attempt, since publishing without recording risks duplicates.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ConflictError means the same item id was recorded twice. The store trusts
// its caller, so a conflict signals an orchestration bug and is fatal.
type ConflictError struct {
	ItemID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("announcement for item %s already recorded", e.ItemID)
}

// PublishKind classifies a publish failure for the retry policy.
type PublishKind int

const (
	// Transient failures (rate limit, timeout, 5xx) are worth retrying.
	Transient PublishKind = iota
	// Permanent failures (rejected payload) will not improve on retry.
	Permanent
)

func (k PublishKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// PublishError wraps a failed dispatch to the social platform.
type PublishError struct {
	Kind PublishKind
	Err  error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish (%s): %v", e.Kind, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }

// IsTransientPublish reports whether err is a publish failure worth retrying.
func IsTransientPublish(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe) && pe.Kind == Transient
}
