// Package store provides durable persistence of finalized activity events.
// The pipeline writes one event per successful classification; the edit and
// delete lifecycle of an event after that belongs to the store's owner, not
// the pipeline.
package store

import (
	"context"
	"fmt"
	"time"
)

// ActivityEvent is one persisted caregiving activity.
type ActivityEvent struct {
	ID              string    `dynamodbav:"id" json:"id"`
	Label           string    `dynamodbav:"label" json:"label"`
	Timestamp       time.Time `dynamodbav:"timestamp" json:"timestamp"`
	SourceCaptureID string    `dynamodbav:"sourceCaptureId" json:"sourceCaptureId"`
	Confidence      float64   `dynamodbav:"confidence" json:"confidence"`
	NeedsReview     bool      `dynamodbav:"needsReview" json:"needsReview"`
	IsUserCorrected bool      `dynamodbav:"isUserCorrected" json:"isUserCorrected"`
	IsDeleted       bool      `dynamodbav:"isDeleted" json:"isDeleted"`
	Rationale       string    `dynamodbav:"rationale" json:"rationale"`
	ModelVersion    string    `dynamodbav:"modelVersion" json:"modelVersion"`
}

// ActivityStore is the persistence boundary for finalized activity events.
// Each method is safe for concurrent use. SaveEvent performs full-item
// replacement; ListDay returns events in timestamp order for one local day.
type ActivityStore interface {
	// SaveEvent persists one activity event. Failures are reported as a
	// *WriteError and are not retried by the pipeline.
	SaveEvent(ctx context.Context, ev *ActivityEvent) error

	// ListDay retrieves all events whose timestamp falls on the given day
	// (formatted 2006-01-02), oldest first.
	ListDay(ctx context.Context, day string) ([]*ActivityEvent, error)
}

// WriteError wraps a storage write failure with the event it concerned.
type WriteError struct {
	EventID string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write (event %s): %v", e.EventID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
