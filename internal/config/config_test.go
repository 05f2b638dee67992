package config

import (
	"strconv"
	"testing"
)

// fakeBackend is an in-memory ConfigBackend for tests.
type fakeBackend struct {
	data map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

func (b *fakeBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *fakeBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (b *fakeBackend) SetString(key, val string) error {
	b.data[key] = val
	return nil
}

func (b *fakeBackend) SetInt(key string, val int) error {
	b.data[key] = strconv.Itoa(val)
	return nil
}

func (b *fakeBackend) Delete(key string) error {
	delete(b.data, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied with an empty backend.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newFakeBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4810 {
		t.Errorf("Server.Port = %d, want 4810", cfg.Server.Port)
	}
	if cfg.Engine.EngagementThreshold != 0.5 {
		t.Errorf("EngagementThreshold = %v, want 0.5", cfg.Engine.EngagementThreshold)
	}
	if cfg.Engine.DismissalThreshold != 0.5 {
		t.Errorf("DismissalThreshold = %v, want 0.5", cfg.Engine.DismissalThreshold)
	}
	if cfg.Engine.LateCheckoutHour != 20 {
		t.Errorf("LateCheckoutHour = %d, want 20", cfg.Engine.LateCheckoutHour)
	}
	if cfg.Engine.HighStressMin != 4 {
		t.Errorf("HighStressMin = %d, want 4", cfg.Engine.HighStressMin)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir should have a default")
	}
}

// TestBackendValues verifies values stored in the backend are applied.
func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := newFakeBackend()
	b.SetInt("server.port", 5810)
	b.SetString("storage.data_dir", "/tmp/attune-test")
	b.SetString("engine.engagement_threshold", "0.7")
	b.SetInt("engine.late_checkout_hour", 22)
	b.SetString("log.level", "debug")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5810 {
		t.Errorf("Server.Port = %d, want 5810", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/attune-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Engine.EngagementThreshold != 0.7 {
		t.Errorf("EngagementThreshold = %v, want 0.7", cfg.Engine.EngagementThreshold)
	}
	if cfg.Engine.LateCheckoutHour != 22 {
		t.Errorf("LateCheckoutHour = %d, want 22", cfg.Engine.LateCheckoutHour)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

// TestEnvOverride verifies environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)

	b := newFakeBackend()
	b.SetInt("server.port", 5000)
	b.SetString("engine.dismissal_threshold", "0.3")

	t.Setenv("ATTUNE_SERVER_PORT", "6000")
	t.Setenv("ATTUNE_ENGINE_DISMISSAL_THRESHOLD", "0.9")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.Engine.DismissalThreshold != 0.9 {
		t.Errorf("DismissalThreshold = %v, want env override 0.9", cfg.Engine.DismissalThreshold)
	}
}

// TestInvalidEnvFallsBack verifies unparseable env values keep the defaults.
func TestInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)

	t.Setenv("ATTUNE_SERVER_PORT", "not-a-port")
	t.Setenv("ATTUNE_ENGINE_ENGAGEMENT_THRESHOLD", "very high")

	cfg, err := loadWith(newFakeBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4810 {
		t.Errorf("Server.Port = %d, want default 4810", cfg.Server.Port)
	}
	if cfg.Engine.EngagementThreshold != 0.5 {
		t.Errorf("EngagementThreshold = %v, want default 0.5", cfg.Engine.EngagementThreshold)
	}
}

func TestShowAll_CoversEverySpec(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newFakeBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Errorf("ShowAll returned %d keys, want %d", len(infos), len(specs))
	}
	for _, info := range infos {
		if info.Key == "" || info.Value == "" {
			t.Errorf("incomplete key info: %+v", info)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Fatalf("ValidKeys returned %d keys, want %d", len(keys), len(specs))
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
