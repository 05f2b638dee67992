package personalize

import (
	"testing"

	"github.com/kzalewski/attune/internal/insight"
)

func TestPreferenceStore_GetMissing(t *testing.T) {
	s := NewPreferenceStore()
	if _, ok := s.Get(insight.TypeSuggestion); ok {
		t.Error("expected absent preference for fresh store")
	}
}

func TestPreferenceStore_UpdateOverwrites(t *testing.T) {
	s := NewPreferenceStore()
	s.Update(insight.TypeSuggestion, 0.3, 0.1)
	s.Update(insight.TypeSuggestion, 0.7, 0.2)

	p, ok := s.Get(insight.TypeSuggestion)
	if !ok {
		t.Fatal("preference missing after update")
	}
	if p.EngagementScore != 0.7 || p.DismissalRate != 0.2 {
		t.Errorf("update did not overwrite: %+v", p)
	}
}

func TestPreferenceStore_ClampsScores(t *testing.T) {
	s := NewPreferenceStore()
	s.Update(insight.TypeStressTrend, 1.5, -0.3)

	p, _ := s.Get(insight.TypeStressTrend)
	if p.EngagementScore != 1.0 {
		t.Errorf("engagement not clamped to 1.0: %v", p.EngagementScore)
	}
	if p.DismissalRate != 0.0 {
		t.Errorf("dismissal not clamped to 0.0: %v", p.DismissalRate)
	}
}

func TestPreferenceStore_TypesIndependent(t *testing.T) {
	s := NewPreferenceStore()
	s.Update(insight.TypeSuggestion, 0.9, 0.1)

	if _, ok := s.Get(insight.TypeAchievement); ok {
		t.Error("update leaked to a different insight type")
	}
}
