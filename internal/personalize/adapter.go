package personalize

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/kzalewski/attune/internal/insight"
	"github.com/kzalewski/attune/internal/profile"
)

// Thresholds control when learned statistics adjust insight priority.
type Thresholds struct {
	Engagement float64 // boost priority above this engagement score
	Dismissal  float64 // demote priority above this dismissal rate
}

// DefaultThresholds returns the policy defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Engagement: 0.5, Dismissal: 0.5}
}

// minPriority is the floor below which dismissal demotion cannot push an insight.
const minPriority = 1

// executivePrefix frames a message strategically for executives. Skipped when
// the message already signals strategic framing.
const executivePrefix = "From a strategic perspective: "

// ProfileSource yields the profile insights are adapted against.
// Implemented by profile.Manager.
type ProfileSource interface {
	GetProfile() (profile.Profile, error)
}

// Adapter rewrites generic insights for the active profile: role-conditioned
// phrasing plus preference-conditioned priority. It never mutates its input.
type Adapter struct {
	profiles ProfileSource
	prefs    *PreferenceStore
	th       Thresholds
}

// NewAdapter wires an Adapter over a profile source and preference store.
func NewAdapter(profiles ProfileSource, prefs *PreferenceStore, th Thresholds) *Adapter {
	return &Adapter{profiles: profiles, prefs: prefs, th: th}
}

// Adapt returns a new insight with the same id, type, and timestamp, and a
// message and priority rewritten for the current profile. The phrasing and
// priority rewrites are independent; both apply. If the profile cannot be
// loaded the defaults are used, never an error.
func (a *Adapter) Adapt(ins insight.Insight) insight.Insight {
	p, err := a.profiles.GetProfile()
	if err != nil {
		slog.Warn("profile unavailable, adapting with defaults", "error", err)
		p = profile.Default()
	}

	out := ins
	out.Message = RewriteMessage(p.Role, ins.Message)
	out.Priority = a.adjustPriority(ins.Type, ins.Priority)
	return out
}

func (a *Adapter) adjustPriority(t insight.Type, priority int) int {
	pref, ok := a.prefs.Get(t)
	if !ok {
		return priority
	}
	adjusted := priority
	if pref.EngagementScore > a.th.Engagement {
		adjusted++
	}
	if pref.DismissalRate > a.th.Dismissal {
		adjusted--
		if adjusted < minPriority {
			adjusted = minPriority
		}
	}
	return adjusted
}

// secondPerson matches the second-person phrasings the manager rewrite knows
// how to substitute. Longer alternatives come first so "you are" wins over
// "you".
var secondPerson = regexp.MustCompile(`(?i)\b(you are|you have|you will|you're|you've|you'll|you'd|yourself|your|you)\b`)

// teamPhrasing is the manager rule table: second-person pattern →
// team-oriented replacement. Substitution, not regeneration; a message with
// no match passes through unchanged.
var teamPhrasing = map[string]string{
	"you are":  "your team is",
	"you have": "your team has",
	"you will": "your team will",
	"you're":   "your team is",
	"you've":   "your team has",
	"you'll":   "your team will",
	"you'd":    "your team would",
	"yourself": "your team",
	"your":     "your team's",
	"you":      "your team",
}

// RewriteMessage applies the role-conditioned phrasing rules. Roles other
// than manager and executive leave the message untouched.
func RewriteMessage(role profile.UserRole, message string) string {
	switch role {
	case profile.RoleManager:
		return rewriteForManager(message)
	case profile.RoleExecutive:
		return rewriteForExecutive(message)
	}
	return message
}

func rewriteForManager(message string) string {
	return secondPerson.ReplaceAllStringFunc(message, func(match string) string {
		repl, ok := teamPhrasing[strings.ToLower(match)]
		if !ok {
			return match
		}
		if startsUpper(match) {
			repl = upperFirst(repl)
		}
		return repl
	})
}

func rewriteForExecutive(message string) string {
	if strings.Contains(strings.ToLower(message), "strategic") {
		return message
	}
	return executivePrefix + message
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func upperFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
