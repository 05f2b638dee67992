package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ATTUNE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ATTUNE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "engine.engagement_threshold", typ: kFloat, env: "ATTUNE_ENGINE_ENGAGEMENT_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Engine.EngagementThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.EngagementThreshold },
	},
	{
		key: "engine.dismissal_threshold", typ: kFloat, env: "ATTUNE_ENGINE_DISMISSAL_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Engine.DismissalThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Engine.DismissalThreshold },
	},
	{
		key: "engine.late_checkout_hour", typ: kInt, env: "ATTUNE_ENGINE_LATE_CHECKOUT_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Engine.LateCheckoutHour = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.LateCheckoutHour },
	},
	{
		key: "engine.high_stress_min", typ: kInt, env: "ATTUNE_ENGINE_HIGH_STRESS_MIN",
		apply:   func(cfg *Config, v any) { cfg.Engine.HighStressMin = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.HighStressMin },
	},
	{
		key: "log.level", typ: kString, env: "ATTUNE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
