package insight

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies a generated insight. The set is closed; the complexity
// filter treats anything outside it as most restrictive.
type Type string

const (
	TypeSuggestion       Type = "suggestion"
	TypeStressTrend      Type = "stress_trend"
	TypeAchievement      Type = "achievement"
	TypeWorkPattern      Type = "work_pattern"
	TypeAnomalyDetection Type = "anomaly_detection"
)

// Insight is one generated advisory message about the user's wellness or
// work pattern. Insights arrive from an upstream generator and are immutable;
// adaptation always produces a new copy.
type Insight struct {
	ID        uuid.UUID
	Type      Type
	Message   string
	Priority  int // higher = more prominent; 1 is the floor
	Timestamp time.Time
}

// FeedbackAction records how the user responded to a shown insight.
type FeedbackAction string

const (
	FeedbackShown     FeedbackAction = "shown"
	FeedbackEngaged   FeedbackAction = "engaged"
	FeedbackDismissed FeedbackAction = "dismissed"
)

// ParseFeedbackAction normalizes a user-supplied action string.
func ParseFeedbackAction(s string) (FeedbackAction, bool) {
	switch FeedbackAction(strings.ToLower(strings.TrimSpace(s))) {
	case FeedbackShown:
		return FeedbackShown, true
	case FeedbackEngaged:
		return FeedbackEngaged, true
	case FeedbackDismissed:
		return FeedbackDismissed, true
	}
	return "", false
}
