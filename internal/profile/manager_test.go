package profile

import (
	"sync"
	"testing"
	"time"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]string

	getAllCalls int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) SetProfileKey(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockStore) GetAllProfileKeys() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getAllCalls++
	cp := make(map[string]string, len(m.data))
	for k, v := range m.data {
		cp[k] = v
	}
	return cp, nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func TestGetProfile_Empty(t *testing.T) {
	mgr := NewManager(newMockStore())

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != Default() {
		t.Errorf("empty store should yield defaults, got %+v", p)
	}
}

func TestSetAndGetField(t *testing.T) {
	mgr := NewManager(newMockStore())

	if err := mgr.SetField("role", "manager"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}
	if err := mgr.SetField("complexity", "advanced"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}

	p, err := mgr.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if p.Role != RoleManager {
		t.Errorf("expected role manager, got %q", p.Role)
	}
	if p.Complexity != ComplexityAdvanced {
		t.Errorf("expected complexity advanced, got %q", p.Complexity)
	}
	if p.Industry != IndustryOther {
		t.Errorf("unset industry should default to other, got %q", p.Industry)
	}
}

func TestSetField_CanonicalizesUnknownValues(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	if err := mgr.SetField("role", "astronaut"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}

	store.mu.Lock()
	stored := store.data[KeyRole]
	store.mu.Unlock()
	if stored != string(RoleOther) {
		t.Errorf("unknown role should be stored as other, got %q", stored)
	}
}

func TestSetField_NormalizesCase(t *testing.T) {
	mgr := NewManager(newMockStore())

	if err := mgr.SetField("Role", "  EXECUTIVE "); err != nil {
		t.Fatalf("SetField error: %v", err)
	}

	p, _ := mgr.GetProfile()
	if p.Role != RoleExecutive {
		t.Errorf("expected executive, got %q", p.Role)
	}
}

func TestSetField_UnknownField(t *testing.T) {
	mgr := NewManager(newMockStore())

	if err := mgr.SetField("favorite_color", "blue"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	mgr.GetProfile()
	mgr.GetProfile()

	store.mu.Lock()
	calls := store.getAllCalls
	store.mu.Unlock()

	if calls != 1 {
		t.Errorf("expected 1 store call (cache hit on second), got %d", calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	ttl := 60 * time.Second
	mgr := NewManagerWithClock(store, clock, ttl)

	mgr.GetProfile()

	clock.Advance(ttl + time.Second)

	mgr.GetProfile()

	store.mu.Lock()
	calls := store.getAllCalls
	store.mu.Unlock()

	if calls != 2 {
		t.Errorf("expected 2 store calls (cache expired), got %d", calls)
	}
}

func TestSetFieldInvalidatesCache(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	p, _ := mgr.GetProfile()
	if p.Role != RoleOther {
		t.Fatalf("expected default role, got %q", p.Role)
	}

	if err := mgr.SetField("role", "manager"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}

	p, _ = mgr.GetProfile()
	if p.Role != RoleManager {
		t.Errorf("SetField should invalidate cache: got %q", p.Role)
	}
}

func TestParsers_FallBackToDefaults(t *testing.T) {
	if got := ParseUserRole("chief vibes officer"); got != RoleOther {
		t.Errorf("ParseUserRole fallback = %q", got)
	}
	if got := ParseWorkIndustry("agriculture"); got != IndustryOther {
		t.Errorf("ParseWorkIndustry fallback = %q", got)
	}
	if got := ParseInsightComplexity("expert"); got != ComplexityBasic {
		t.Errorf("ParseInsightComplexity fallback = %q", got)
	}
}

func TestComplexityTiers(t *testing.T) {
	if ComplexityBasic.Tier() >= ComplexityIntermediate.Tier() {
		t.Error("basic should rank below intermediate")
	}
	if ComplexityIntermediate.Tier() >= ComplexityAdvanced.Tier() {
		t.Error("intermediate should rank below advanced")
	}
	if InsightComplexity("bogus").Tier() != ComplexityBasic.Tier() {
		t.Error("unknown complexity should rank as basic")
	}
}
