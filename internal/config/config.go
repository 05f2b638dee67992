package config

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Engine  EngineConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// EngineConfig holds the personalization engine's tunable policy values.
type EngineConfig struct {
	EngagementThreshold float64 // engagement score above which priority is boosted
	DismissalThreshold  float64 // dismissal rate above which priority is demoted
	LateCheckoutHour    int     // hour-of-day at or after which a checkout is late
	HighStressMin       int     // stress rating at or above which stress is high
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4810,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Engine: EngineConfig{
			EngagementThreshold: 0.5,
			DismissalThreshold:  0.5,
			LateCheckoutHour:    20,
			HighStressMin:       4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.attune.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/attune/config.json.
//
// Environment variables (ATTUNE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
