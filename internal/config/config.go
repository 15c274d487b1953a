package config

import (
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Generate  GenerateConfig
	Retry     RetryConfig
	Guidance  GuidanceConfig
	Search    SearchConfig
	Legal     LegalConfig
	Cache     CacheConfig
	Inventory InventoryConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// BackendConfig controls discovery of the generative backend. Candidates is
// an ordered, comma-separated URL list; the first candidate that answers a
// probe becomes the live endpoint.
type BackendConfig struct {
	Candidates   string
	ProbeTimeout string
	RecheckAfter string
}

type GenerateConfig struct {
	Model       string
	Temperature float64
}

// RetryConfig holds the per-attempt timeout ladder (comma-separated
// durations, one per attempt) and the linear backoff base.
type RetryConfig struct {
	Timeouts    string
	BackoffBase string
}

type GuidanceConfig struct {
	SubTaskTimeout string
}

type SearchConfig struct {
	MaxResults    int
	RefineEnabled bool
	RefineTimeout string
}

type LegalConfig struct {
	HempDerivedOnly    bool
	MaxCompoundPercent float64
}

type CacheConfig struct {
	Freshness        string
	MinGenuineLength int
	RedisURL         string
}

type InventoryConfig struct {
	SourceURL    string
	FilePath     string
	FetchTimeout string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Addr:           ":4600",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Backend: BackendConfig{
			Candidates:   "http://localhost:11434,http://127.0.0.1:11434",
			ProbeTimeout: "3s",
			RecheckAfter: "60s",
		},
		Generate: GenerateConfig{
			Model:       "llama3.1",
			Temperature: 0.7,
		},
		Retry: RetryConfig{
			Timeouts:    "60s,120s,240s",
			BackoffBase: "1s",
		},
		Guidance: GuidanceConfig{
			SubTaskTimeout: "30s",
		},
		Search: SearchConfig{
			MaxResults:    4,
			RefineEnabled: true,
			RefineTimeout: "3s",
		},
		Legal: LegalConfig{
			HempDerivedOnly:    true,
			MaxCompoundPercent: 0.3,
		},
		Cache: CacheConfig{
			Freshness:        "30m",
			MinGenuineLength: 80,
		},
		Inventory: InventoryConfig{
			FetchTimeout: "10s",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.leafwise.budtender).
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/budtender/config.json.
//
// A .env file in the working directory is loaded first if present.
// Environment variables (BUDTENDER_*) override backend values on all
// platforms.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newPlatformBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// CandidateList splits the configured backend candidates, preserving order
// and dropping empty entries.
func (c BackendConfig) CandidateList() []string {
	var out []string
	for _, s := range strings.Split(c.Candidates, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
