package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CheckIn is a persisted workplace check-in. CheckOutTime and StressRating
// are optional; the trigger evaluator treats absence as "condition not met".
type CheckIn struct {
	ID           string
	CreatedAt    time.Time
	CheckOutTime *time.Time
	StressRating *int // 1–5
	Note         string
}

// InsightRecord is a raw upstream-generated insight as stored. Adaptation
// happens on read; the stored record is never rewritten.
type InsightRecord struct {
	ID        string
	Type      string
	Message   string
	Priority  int
	CreatedAt time.Time
}

// FeedbackCounts aggregates user responses per insight type. The learning
// worker turns these into engagement/dismissal ratios.
type FeedbackCounts struct {
	InsightType string
	Shown       int
	Engaged     int
	Dismissed   int
}

// PreferenceRecord is the persisted form of a learned per-type preference.
type PreferenceRecord struct {
	InsightType     string
	EngagementScore float64
	DismissalRate   float64
	UpdatedAt       time.Time
}

// TriggerEvent records one firing of a contextual trigger.
type TriggerEvent struct {
	ID       string
	Name     string
	Type     string
	Message  string
	Priority int
	FiredAt  time.Time
}

// Job is a queued unit of background work (preference recomputation).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
