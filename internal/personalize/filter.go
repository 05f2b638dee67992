package personalize

import (
	"github.com/kzalewski/attune/internal/insight"
	"github.com/kzalewski/attune/internal/profile"
)

// minComplexity assigns every insight type the lowest tier at which it
// becomes visible. The mapping is total: anything absent is handled by
// MinComplexityFor as most restrictive.
var minComplexity = map[insight.Type]profile.InsightComplexity{
	insight.TypeSuggestion:       profile.ComplexityBasic,
	insight.TypeStressTrend:      profile.ComplexityBasic,
	insight.TypeAchievement:      profile.ComplexityBasic,
	insight.TypeWorkPattern:      profile.ComplexityIntermediate,
	insight.TypeAnomalyDetection: profile.ComplexityAdvanced,
}

// MinComplexityFor returns the minimum tier at which insights of type t are
// shown. Unknown types default to the most restrictive tier.
func MinComplexityFor(t insight.Type) profile.InsightComplexity {
	if c, ok := minComplexity[t]; ok {
		return c
	}
	return profile.ComplexityAdvanced
}

// FilterByComplexity returns the subsequence of insights visible at the
// given tier, preserving relative order. Inputs are never mutated.
func FilterByComplexity(insights []insight.Insight, c profile.InsightComplexity) []insight.Insight {
	var visible []insight.Insight
	for _, ins := range insights {
		if MinComplexityFor(ins.Type).Tier() <= c.Tier() {
			visible = append(visible, ins)
		}
	}
	return visible
}
