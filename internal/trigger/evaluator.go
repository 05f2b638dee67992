package trigger

import "time"

// CheckIn is the read-only view of a workplace check-in the evaluator
// consumes. Missing fields simply fail to satisfy rule conditions; they
// never abort evaluation of other rules.
type CheckIn struct {
	CheckOutTime *time.Time
	StressRating *int // 1–5 scale
}

// Config holds the tunable rule thresholds.
type Config struct {
	LateCheckoutHour int // hour-of-day at or after which a checkout counts as late
	HighStressMin    int // stress rating at or above which stress counts as high
}

// DefaultConfig returns the policy defaults: checkout at 20:00 or later is
// late, stress 4 of 5 or higher is high.
func DefaultConfig() Config {
	return Config{LateCheckoutHour: 20, HighStressMin: 4}
}

// Evaluator translates check-in events into advisory triggers, consulting
// the cooldown tracker to suppress recently fired ones. Rules evaluate
// independently; one check-in may fire several triggers.
type Evaluator struct {
	catalog  Catalog
	cooldown *CooldownTracker
	cfg      Config
}

// NewEvaluator wires an Evaluator over a catalog and cooldown tracker.
func NewEvaluator(catalog Catalog, cooldown *CooldownTracker, cfg Config) *Evaluator {
	return &Evaluator{catalog: catalog, cooldown: cooldown, cfg: cfg}
}

// Evaluate returns the triggers fired by a single check-in, deduplicated by
// name, with anything in cooldown excluded. Fired triggers are not marked
// used here; callers record usage once the trigger has actually been shown.
func (e *Evaluator) Evaluate(c CheckIn) []ContextualTrigger {
	var fired []ContextualTrigger
	seen := make(map[string]bool)
	for _, candidate := range e.candidates(c) {
		if seen[candidate.Name] || e.cooldown.InCooldown(candidate) {
			continue
		}
		seen[candidate.Name] = true
		fired = append(fired, candidate)
	}
	return fired
}

// candidates applies each rule's condition over the check-in fields and
// resolves matches against the catalog. New rules follow the same pattern:
// condition → catalog lookup by name or type.
func (e *Evaluator) candidates(c CheckIn) []ContextualTrigger {
	var out []ContextualTrigger

	if c.CheckOutTime != nil && c.CheckOutTime.Hour() >= e.cfg.LateCheckoutHour {
		if t, ok := e.catalog.ByName(NameLateCheckout); ok {
			out = append(out, t)
		}
	}

	if c.StressRating != nil && *c.StressRating >= e.cfg.HighStressMin {
		if t, ok := e.catalog.FirstOfType(TypeHighStress); ok {
			out = append(out, t)
		}
	}

	return out
}
