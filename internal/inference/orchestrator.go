package inference

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/carelog/internal/capture"
	"github.com/fpang/carelog/internal/metrics"
	"github.com/fpang/carelog/internal/store"
)

// Orchestrator defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = 500 * time.Millisecond
	DefaultReviewThreshold = 0.75
)

// Orchestrator drives a Client with bounded retries and exponential backoff,
// computes the needs-review flag from the confidence threshold, and forwards
// each successful result to the activity store. Store-write failures are
// surfaced as-is and never retried; nothing is persisted when every
// inference attempt fails.
type Orchestrator struct {
	client Client
	store  store.ActivityStore

	maxAttempts int
	backoffBase time.Duration
	threshold   float64

	// sleep exists so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// OrchestratorConfig tunes an Orchestrator. Zero values select the defaults.
type OrchestratorConfig struct {
	MaxAttempts int
	BackoffBase time.Duration

	// ReviewThreshold overrides DefaultReviewThreshold. It is a pointer
	// because zero is a meaningful setting (never flag for review), so nil
	// rather than zero selects the default.
	ReviewThreshold *float64

	// Sleep overrides the backoff sleeper (tests only).
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an Orchestrator over the given client and store.
func NewOrchestrator(client Client, st store.ActivityStore, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	threshold := DefaultReviewThreshold
	if cfg.ReviewThreshold != nil {
		threshold = *cfg.ReviewThreshold
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return &Orchestrator{
		client:      client,
		store:       st,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		threshold:   threshold,
		sleep:       cfg.Sleep,
	}
}

// Classify runs inference for the envelope with retries. On success it
// applies the review policy, persists the activity event, and returns the
// persisted event. It fails with a *FailureError once retries are exhausted,
// or a *store.WriteError when inference succeeded but the write did not.
func (o *Orchestrator) Classify(ctx context.Context, env *capture.Envelope) (*store.ActivityEvent, error) {
	var result *Result
	var lastErr error

	start := time.Now()
	attempts := 0
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		attempts = attempt
		res, err := o.client.Infer(ctx, env)
		if err == nil {
			result = res
			break
		}
		lastErr = err

		log.Warn().Err(err).
			Str("captureId", env.ID).
			Int("attempt", attempt).
			Int("maxAttempts", o.maxAttempts).
			Msg("Inference attempt failed")

		if attempt == o.maxAttempts {
			break
		}
		backoff := o.backoffBase * (1 << (attempt - 1))
		if err := o.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	m := metrics.New("CareLog").
		Dimension("Operation", "classify").
		Metric("InferenceLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Metric("InferenceAttempts", float64(attempts), metrics.UnitCount).
		Property("captureId", env.ID)
	defer m.Flush()

	if result == nil {
		m.Count("InferenceFailures")
		return nil, &FailureError{CaptureID: env.ID, Attempts: attempts, Err: lastErr}
	}

	needsReview := result.Confidence < o.threshold
	ev := &store.ActivityEvent{
		ID:              uuid.NewString(),
		Label:           string(result.Label),
		Timestamp:       env.CapturedAt,
		SourceCaptureID: env.ID,
		Confidence:      result.Confidence,
		NeedsReview:     needsReview,
		Rationale:       result.Rationale,
		ModelVersion:    result.ModelVersion,
	}

	if err := o.store.SaveEvent(ctx, ev); err != nil {
		m.Count("StoreWriteErrors")
		log.Error().Err(err).Str("captureId", env.ID).Msg("Failed to persist activity event")
		return nil, err
	}

	m.Count("EventsPersisted")
	log.Info().
		Str("captureId", env.ID).
		Str("label", string(result.Label)).
		Float64("confidence", result.Confidence).
		Bool("needsReview", needsReview).
		Msg("Activity classified")

	return ev, nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
