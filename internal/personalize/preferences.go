package personalize

import (
	"sync"

	"github.com/kzalewski/attune/internal/insight"
)

// Preference holds the learned per-type statistics that reshape future
// prioritization. Both values live in [0, 1].
type Preference struct {
	EngagementScore float64
	DismissalRate   float64
}

// PreferenceStore keeps at most one Preference per insight type.
// Updates are last-write-wins; any smoothing across calls is the caller's
// responsibility.
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs map[insight.Type]Preference
}

// NewPreferenceStore returns an empty store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[insight.Type]Preference)}
}

// Update inserts or replaces the stored preference for the given type.
// Scores are clamped into [0, 1].
func (s *PreferenceStore) Update(t insight.Type, engagementScore, dismissalRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[t] = Preference{
		EngagementScore: clamp01(engagementScore),
		DismissalRate:   clamp01(dismissalRate),
	}
}

// Get returns the stored preference for the given type, or false if the
// type has never been updated. Absence is the neutral case, not an error.
func (s *PreferenceStore) Get(t insight.Type) (Preference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[t]
	return p, ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
