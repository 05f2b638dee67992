package trigger

import "time"

// Type classifies a contextual trigger.
type Type string

const (
	TypeLateCheckout Type = "late_checkout"
	TypeHighStress   Type = "high_stress"
)

// Canonical catalog entry names. Firing records a timestamp keyed by name.
const (
	NameLateCheckout = "late_checkout"
	NameHighStress   = "high_stress"
)

// ContextualTrigger is a template definition for an advisory prompt fired in
// response to a contextual event. Definitions are static policy data; only
// the last-fired timestamp (tracked by name) changes over time.
type ContextualTrigger struct {
	Name          string
	Type          Type
	Message       string
	Priority      int
	CooldownHours float64
}

// Cooldown converts the configured cooldown window to a duration.
func (t ContextualTrigger) Cooldown() time.Duration {
	return time.Duration(t.CooldownHours * float64(time.Hour))
}

// Catalog is a fixed set of trigger definitions, looked up by name or type.
type Catalog struct {
	triggers []ContextualTrigger
}

// NewCatalog builds a catalog from the given definitions. Later duplicates
// of a name are ignored; a name maps to at most one entry.
func NewCatalog(triggers ...ContextualTrigger) Catalog {
	seen := make(map[string]bool, len(triggers))
	var kept []ContextualTrigger
	for _, t := range triggers {
		if t.Name == "" || seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		kept = append(kept, t)
	}
	return Catalog{triggers: kept}
}

// DefaultCatalog returns the built-in trigger definitions.
func DefaultCatalog() Catalog {
	return NewCatalog(
		ContextualTrigger{
			Name:          NameLateCheckout,
			Type:          TypeLateCheckout,
			Message:       "Working late again? Wrapping up now helps tomorrow's focus.",
			Priority:      3,
			CooldownHours: 24,
		},
		ContextualTrigger{
			Name:          NameHighStress,
			Type:          TypeHighStress,
			Message:       "Your stress rating is high today. A short break or walk can help reset.",
			Priority:      4,
			CooldownHours: 12,
		},
	)
}

// ByName returns the catalog entry with the given name.
func (c Catalog) ByName(name string) (ContextualTrigger, bool) {
	for _, t := range c.triggers {
		if t.Name == name {
			return t, true
		}
	}
	return ContextualTrigger{}, false
}

// FirstOfType returns the first catalog entry with the given type.
func (c Catalog) FirstOfType(typ Type) (ContextualTrigger, bool) {
	for _, t := range c.triggers {
		if t.Type == typ {
			return t, true
		}
	}
	return ContextualTrigger{}, false
}
