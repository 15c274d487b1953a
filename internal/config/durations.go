package config

import (
	"strings"
	"time"
)

// Duration parses s, returning fallback when s is empty or malformed.
// Config values are strings so that every backend (UserDefaults, JSON file,
// environment) round-trips them the same way.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TimeoutList parses the comma-separated per-attempt timeout ladder.
// Malformed entries are skipped; an empty result means the caller should
// use its built-in ladder.
func (c RetryConfig) TimeoutList() []time.Duration {
	var out []time.Duration
	for _, s := range strings.Split(c.Timeouts, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil || d <= 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}
