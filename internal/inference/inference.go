// Package inference classifies capture envelopes into caregiving activity
// labels. The Client interface is the pluggable provider boundary; the
// Orchestrator drives a client with bounded retries and exponential backoff,
// applies the confidence-review policy, and forwards results to the activity
// store.
package inference

import (
	"context"
	"fmt"

	"github.com/fpang/carelog/internal/capture"
)

// ActivityLabel is the classification vocabulary for capture records.
type ActivityLabel string

const (
	LabelDiaperWet   ActivityLabel = "diaperWet"
	LabelDiaperBowel ActivityLabel = "diaperBowel"
	LabelFeeding     ActivityLabel = "feeding"
	LabelSleepStart  ActivityLabel = "sleepStart"
	LabelWakeUp      ActivityLabel = "wakeUp"
	LabelOther       ActivityLabel = "other"
)

// KnownLabels lists every valid ActivityLabel.
var KnownLabels = []ActivityLabel{
	LabelDiaperWet, LabelDiaperBowel, LabelFeeding, LabelSleepStart, LabelWakeUp, LabelOther,
}

// ParseLabel normalizes a model-reported label, mapping anything outside the
// vocabulary to LabelOther.
func ParseLabel(s string) ActivityLabel {
	for _, l := range KnownLabels {
		if string(l) == s {
			return l
		}
	}
	return LabelOther
}

// Result is one classification verdict.
type Result struct {
	Label        ActivityLabel
	Confidence   float64 // in [0, 1]
	Rationale    string
	ModelVersion string
}

// Client classifies one capture envelope. Implementations may fail with
// transient or permanent errors; the orchestrator retries all failures
// identically.
type Client interface {
	Infer(ctx context.Context, env *capture.Envelope) (*Result, error)
}

// FailureError reports that every inference attempt for a capture failed.
// The capture's source media is retained on disk so it is not silently lost.
type FailureError struct {
	CaptureID string
	Attempts  int
	Err       error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("inference failed for capture %s after %d attempts: %v", e.CaptureID, e.Attempts, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }
