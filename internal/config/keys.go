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
	kBool
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
		key: "server.addr", typ: kString, env: "BUDTENDER_SERVER_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Addr },
	},
	{
		key: "server.rate_limit_rps", typ: kFloat, env: "BUDTENDER_SERVER_RATE_LIMIT_RPS",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimitRPS = v.(float64) },
		extract: func(cfg Config) any { return cfg.Server.RateLimitRPS },
	},
	{
		key: "server.rate_limit_burst", typ: kInt, env: "BUDTENDER_SERVER_RATE_LIMIT_BURST",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimitBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimitBurst },
	},
	{
		key: "backend.candidates", typ: kString, env: "BUDTENDER_BACKEND_CANDIDATES",
		apply:   func(cfg *Config, v any) { cfg.Backend.Candidates = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Candidates },
	},
	{
		key: "backend.probe_timeout", typ: kString, env: "BUDTENDER_BACKEND_PROBE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.ProbeTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.ProbeTimeout },
	},
	{
		key: "backend.recheck_after", typ: kString, env: "BUDTENDER_BACKEND_RECHECK_AFTER",
		apply:   func(cfg *Config, v any) { cfg.Backend.RecheckAfter = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.RecheckAfter },
	},
	{
		key: "generate.model", typ: kString, env: "BUDTENDER_GENERATE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generate.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generate.Model },
	},
	{
		key: "generate.temperature", typ: kFloat, env: "BUDTENDER_GENERATE_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generate.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generate.Temperature },
	},
	{
		key: "retry.timeouts", typ: kString, env: "BUDTENDER_RETRY_TIMEOUTS",
		apply:   func(cfg *Config, v any) { cfg.Retry.Timeouts = v.(string) },
		extract: func(cfg Config) any { return cfg.Retry.Timeouts },
	},
	{
		key: "retry.backoff_base", typ: kString, env: "BUDTENDER_RETRY_BACKOFF_BASE",
		apply:   func(cfg *Config, v any) { cfg.Retry.BackoffBase = v.(string) },
		extract: func(cfg Config) any { return cfg.Retry.BackoffBase },
	},
	{
		key: "guidance.subtask_timeout", typ: kString, env: "BUDTENDER_GUIDANCE_SUBTASK_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Guidance.SubTaskTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Guidance.SubTaskTimeout },
	},
	{
		key: "search.max_results", typ: kInt, env: "BUDTENDER_SEARCH_MAX_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Search.MaxResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.MaxResults },
	},
	{
		key: "search.refine_enabled", typ: kBool, env: "BUDTENDER_SEARCH_REFINE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Search.RefineEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Search.RefineEnabled },
	},
	{
		key: "search.refine_timeout", typ: kString, env: "BUDTENDER_SEARCH_REFINE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Search.RefineTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.RefineTimeout },
	},
	{
		key: "legal.hemp_derived_only", typ: kBool, env: "BUDTENDER_LEGAL_HEMP_DERIVED_ONLY",
		apply:   func(cfg *Config, v any) { cfg.Legal.HempDerivedOnly = v.(bool) },
		extract: func(cfg Config) any { return cfg.Legal.HempDerivedOnly },
	},
	{
		key: "legal.max_compound_percent", typ: kFloat, env: "BUDTENDER_LEGAL_MAX_COMPOUND_PERCENT",
		apply:   func(cfg *Config, v any) { cfg.Legal.MaxCompoundPercent = v.(float64) },
		extract: func(cfg Config) any { return cfg.Legal.MaxCompoundPercent },
	},
	{
		key: "cache.freshness", typ: kString, env: "BUDTENDER_CACHE_FRESHNESS",
		apply:   func(cfg *Config, v any) { cfg.Cache.Freshness = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Freshness },
	},
	{
		key: "cache.min_genuine_length", typ: kInt, env: "BUDTENDER_CACHE_MIN_GENUINE_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.Cache.MinGenuineLength = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.MinGenuineLength },
	},
	{
		key: "cache.redis_url", typ: kString, env: "BUDTENDER_CACHE_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisURL },
	},
	{
		key: "inventory.source_url", typ: kString, env: "BUDTENDER_INVENTORY_SOURCE_URL",
		apply:   func(cfg *Config, v any) { cfg.Inventory.SourceURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Inventory.SourceURL },
	},
	{
		key: "inventory.file_path", typ: kString, env: "BUDTENDER_INVENTORY_FILE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Inventory.FilePath = v.(string) },
		extract: func(cfg Config) any { return cfg.Inventory.FilePath },
	},
	{
		key: "inventory.fetch_timeout", typ: kString, env: "BUDTENDER_INVENTORY_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Inventory.FetchTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Inventory.FetchTimeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BUDTENDER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "BUDTENDER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
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
