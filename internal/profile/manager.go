package profile

import (
	"fmt"
	"sync"
	"time"
)

// Profile field keys as stored in the user_profile table.
const (
	KeyRole       = "profile.role"
	KeyIndustry   = "profile.industry"
	KeyComplexity = "profile.complexity"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached, structured access to the user profile stored in
// SQLite. Missing or malformed fields resolve to the documented defaults
// rather than errors.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Profile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GetProfile reads all profile keys from storage (or cache) and assembles
// a Profile. Returns Default() values for anything unset.
func (m *Manager) GetProfile() (Profile, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := *m.cached
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	// Slow path: write lock for cache miss.
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return *m.cached, nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys: %w", err)
	}

	p := buildProfile(keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return p, nil
}

// SetField persists one of the profile fields ("role", "industry",
// "complexity") and invalidates the cache. Values outside the known
// enumerations are stored as their default variant; field names outside the
// three known ones are rejected.
func (m *Manager) SetField(field, value string) error {
	key, canonical, err := canonicalField(field, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(key, canonical); err != nil {
		return fmt.Errorf("setting profile key %q: %w", key, err)
	}

	m.cached = nil
	return nil
}

func canonicalField(field, value string) (key, canonical string, err error) {
	switch normalize(field) {
	case "role":
		return KeyRole, string(ParseUserRole(value)), nil
	case "industry":
		return KeyIndustry, string(ParseWorkIndustry(value)), nil
	case "complexity":
		return KeyComplexity, string(ParseInsightComplexity(value)), nil
	}
	return "", "", fmt.Errorf("unknown profile field: %q", field)
}

// buildProfile assembles a Profile from flat key-value pairs, applying
// defaults for anything absent.
func buildProfile(keys map[string]string) Profile {
	p := Default()
	if v, ok := keys[KeyRole]; ok {
		p.Role = ParseUserRole(v)
	}
	if v, ok := keys[KeyIndustry]; ok {
		p.Industry = ParseWorkIndustry(v)
	}
	if v, ok := keys[KeyComplexity]; ok {
		p.Complexity = ParseInsightComplexity(v)
	}
	return p
}
