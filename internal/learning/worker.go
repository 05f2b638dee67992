// Package learning recomputes per-type insight preferences from accumulated
// feedback counters, off the hot path via the SQLite job queue.
package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kzalewski/attune/internal/insight"
	"github.com/kzalewski/attune/internal/personalize"
	"github.com/kzalewski/attune/internal/storage"
)

// JobTypeRecompute is the queue type for preference recomputation jobs.
const JobTypeRecompute = "preference_recompute"

// JobStore abstracts the storage operations the worker needs.
// Implemented by storage.Store.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetFeedbackCounts(insightType string) (storage.FeedbackCounts, error)
	UpsertPreference(insightType string, engagementScore, dismissalRate float64) error
}

// Worker processes preference_recompute jobs: it reads the lifetime feedback
// counters for an insight type, derives engagement and dismissal ratios, and
// overwrites both the persisted preference row and the in-memory store the
// adapter reads from.
type Worker struct {
	store  JobStore
	prefs  *personalize.PreferenceStore
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, prefs *personalize.PreferenceStore, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		prefs:  prefs,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single recompute job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeRecompute})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// RecomputePayload is the JSON payload of a preference_recompute job.
type RecomputePayload struct {
	InsightType string `json:"insight_type"`
}

// NewRecomputeJob builds a queued recompute job for one insight type.
func NewRecomputeJob(insightType insight.Type) (storage.Job, error) {
	payload, err := json.Marshal(RecomputePayload{InsightType: string(insightType)})
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshalling recompute payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeRecompute,
		PayloadJSON: string(payload),
	}, nil
}

func (w *Worker) processJob(job *storage.Job) error {
	var payload RecomputePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.InsightType == "" {
		return fmt.Errorf("recompute payload missing insight_type")
	}

	counts, err := w.store.GetFeedbackCounts(payload.InsightType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Nothing recorded yet; leave the preference absent (neutral).
			return nil
		}
		return fmt.Errorf("loading feedback counts for %q: %w", payload.InsightType, err)
	}
	if counts.Shown == 0 {
		return nil
	}

	engagement := float64(counts.Engaged) / float64(counts.Shown)
	dismissal := float64(counts.Dismissed) / float64(counts.Shown)

	if err := w.store.UpsertPreference(payload.InsightType, engagement, dismissal); err != nil {
		return fmt.Errorf("persisting preference for %q: %w", payload.InsightType, err)
	}
	w.prefs.Update(insight.Type(payload.InsightType), engagement, dismissal)

	w.logger.Debug("preference recomputed",
		"insight_type", payload.InsightType,
		"engagement_score", engagement,
		"dismissal_rate", dismissal,
	)
	return nil
}

// Hydrate loads persisted preferences into the in-memory store. Called once
// at startup before the adapter starts serving.
func Hydrate(prefs *personalize.PreferenceStore, records []storage.PreferenceRecord) {
	for _, r := range records {
		prefs.Update(insight.Type(r.InsightType), r.EngagementScore, r.DismissalRate)
	}
}
