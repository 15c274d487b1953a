// Package cache keeps the most recent successful guidance response per
// session. It is an optimization, never a correctness dependency: every
// read re-validates the entry and anything suspect is evicted rather than
// served.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leafwise/budtender/internal/guidance"
)

const defaultFreshness = 30 * time.Minute

// ErrMiss is returned when no entry exists for a session key.
var ErrMiss = errors.New("cache miss")

// Reason classifies why an entry was rejected and evicted.
type Reason int

const (
	// Stale means the entry outlived the freshness window.
	Stale Reason = iota
	// HostMismatch means the entry was fetched through a host that is no
	// longer the live one.
	HostMismatch
	// FallbackContentDetected means the stored text looks like canned
	// fallback output, not a genuine completion.
	FallbackContentDetected
)

func (r Reason) String() string {
	switch r {
	case Stale:
		return "stale"
	case HostMismatch:
		return "host mismatch"
	case FallbackContentDetected:
		return "fallback content detected"
	default:
		return "unknown"
	}
}

// Invalid is the rejection returned by Get alongside eviction.
type Invalid struct {
	Reason Reason
	Key    string
}

func (e *Invalid) Error() string {
	return fmt.Sprintf("cached response for %s invalid: %s", e.Key, e.Reason)
}

// Entry is one stored response plus the context needed to validate it.
type Entry struct {
	Payload   guidance.Response `json:"payload"`
	WrittenAt time.Time         `json:"written_at"`
	Host      string            `json:"host"`
}

// Store is the backing key-value surface. The in-memory store is the
// default; a Redis store exists for shared deployments.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

// FingerprintPolicy decides whether stored text is canned fallback output.
// All three conditions must hold to reject: a fingerprint match alone, or
// short text alone, must never evict a legitimately brief real answer.
type FingerprintPolicy struct {
	Fingerprints []string
	MinLength    int
	Marker       string
}

// DefaultFingerprintPolicy matches the canned texts the orchestrator
// substitutes on generation failure.
func DefaultFingerprintPolicy(minLength int) FingerprintPolicy {
	if minLength <= 0 {
		minLength = 80
	}
	return FingerprintPolicy{
		Fingerprints: guidance.FallbackFingerprints(),
		MinLength:    minLength,
		Marker:       guidance.StructuralMarker,
	}
}

// isFallbackFingerprint reports whether text is canned fallback output:
// it matches a known fingerprint AND is shorter than the minimum genuine
// length AND lacks the structural marker real completions carry.
func (p FingerprintPolicy) isFallbackFingerprint(text string) bool {
	matched := false
	for _, fp := range p.Fingerprints {
		if fp != "" && strings.Contains(text, fp) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if len(text) >= p.MinLength {
		return false
	}
	return p.Marker == "" || !strings.Contains(text, p.Marker)
}

// Cache validates entries on every read. hostFn supplies the currently
// live host for the host-consistency check; now is injectable for tests.
type Cache struct {
	store     Store
	hostFn    func() string
	freshness time.Duration
	policy    FingerprintPolicy
	now       func() time.Time
}

// New creates a Cache over store. A non-positive freshness falls back to
// 30 minutes.
func New(store Store, hostFn func() string, freshness time.Duration, policy FingerprintPolicy) *Cache {
	if freshness <= 0 {
		freshness = defaultFreshness
	}
	return &Cache{
		store:     store,
		hostFn:    hostFn,
		freshness: freshness,
		policy:    policy,
		now:       time.Now,
	}
}

// Put stores resp under sessionKey, overwriting unconditionally. The
// write stamps the current time and live host so Get can validate later.
func (c *Cache) Put(ctx context.Context, sessionKey string, resp guidance.Response) error {
	entry := Entry{
		Payload:   resp,
		WrittenAt: c.now(),
		Host:      c.hostFn(),
	}
	if err := c.store.Set(ctx, sessionKey, entry); err != nil {
		return fmt.Errorf("caching response for %s: %w", sessionKey, err)
	}
	return nil
}

// Get returns the stored response for sessionKey after validating it.
// Three independent rules each suffice to reject: age beyond the freshness
// window, a host that no longer matches the live one, and text carrying a
// fallback fingerprint. A rejected entry is deleted before the typed
// *Invalid error is returned; a missing entry returns ErrMiss.
func (c *Cache) Get(ctx context.Context, sessionKey string) (guidance.Response, error) {
	entry, ok, err := c.store.Get(ctx, sessionKey)
	if err != nil {
		return guidance.Response{}, fmt.Errorf("reading cache for %s: %w", sessionKey, err)
	}
	if !ok {
		return guidance.Response{}, ErrMiss
	}

	if reason, bad := c.validate(entry); bad {
		c.evict(ctx, sessionKey, reason)
		return guidance.Response{}, &Invalid{Reason: reason, Key: sessionKey}
	}
	return entry.Payload, nil
}

func (c *Cache) validate(entry Entry) (Reason, bool) {
	if c.now().Sub(entry.WrittenAt) > c.freshness {
		return Stale, true
	}
	if live := c.hostFn(); live != "" && entry.Host != live {
		return HostMismatch, true
	}
	if c.policy.isFallbackFingerprint(entry.Payload.AIText) {
		return FallbackContentDetected, true
	}
	return 0, false
}

// evict removes the entry so subsequent reads miss fast instead of
// re-validating the same bad entry.
func (c *Cache) evict(ctx context.Context, key string, reason Reason) {
	if err := c.store.Delete(ctx, key); err != nil {
		slog.Warn("failed to evict invalid cache entry", "key", key, "reason", reason.String(), "error", err)
		return
	}
	slog.Debug("evicted invalid cache entry", "key", key, "reason", reason.String())
}
