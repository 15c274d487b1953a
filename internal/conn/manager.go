// Package conn discovers a reachable generative backend and tracks whether
// it is currently usable. The Manager is the single writer of endpoint
// state; every other component reads it through EnsureLive or Host.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultRecheckAfter = 60 * time.Second
)

// Endpoint is a backend base URL plus its last observed liveness.
type Endpoint struct {
	BaseURL   string
	Live      bool
	CheckedAt time.Time
}

// Prober checks whether a base URL answers as a live backend. The context
// carries the probe deadline.
type Prober interface {
	Probe(ctx context.Context, baseURL string) error
}

// Config holds Manager parameters. Candidates is the ordered fallback list
// walked when the current endpoint stops answering.
type Config struct {
	Candidates   []string
	ProbeTimeout time.Duration
	RecheckAfter time.Duration
}

// Manager owns the process-wide endpoint state.
type Manager struct {
	mu      sync.Mutex
	current Endpoint

	candidates   []string
	probeTimeout time.Duration
	recheckAfter time.Duration
	prober       Prober
	now          func() time.Time
}

// NewManager creates a Manager probing candidates via GET /api/tags.
func NewManager(cfg Config) *Manager {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.RecheckAfter <= 0 {
		cfg.RecheckAfter = defaultRecheckAfter
	}
	return &Manager{
		candidates:   cfg.Candidates,
		probeTimeout: cfg.ProbeTimeout,
		recheckAfter: cfg.RecheckAfter,
		prober:       &tagsProber{httpClient: &http.Client{}},
		now:          time.Now,
	}
}

// Probe checks one candidate within the probe timeout. On success the
// candidate becomes the current live endpoint and the check time is
// recorded; on failure the manager state is left untouched.
func (m *Manager) Probe(ctx context.Context, candidate string) (Endpoint, error) {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := m.prober.Probe(pctx, candidate); err != nil {
		return Endpoint{}, classifyProbe(candidate, err)
	}

	ep := Endpoint{
		BaseURL:   strings.TrimRight(candidate, "/"),
		Live:      true,
		CheckedAt: m.now(),
	}
	m.mu.Lock()
	m.current = ep
	m.mu.Unlock()
	return ep, nil
}

// EnsureLive returns the current endpoint without any network call when it
// was probed live within the recheck window. Otherwise it re-probes the
// current endpoint, then walks the candidate list in order, adopting the
// first URL that answers. When nothing answers the state is marked
// not-live and an Unreachable error is returned.
func (m *Manager) EnsureLive(ctx context.Context) (Endpoint, error) {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if cur.Live && m.now().Sub(cur.CheckedAt) < m.recheckAfter {
		return cur, nil
	}

	order := make([]string, 0, len(m.candidates)+1)
	if cur.BaseURL != "" {
		order = append(order, cur.BaseURL)
	}
	for _, c := range m.candidates {
		c = strings.TrimRight(strings.TrimSpace(c), "/")
		if c != "" && c != cur.BaseURL {
			order = append(order, c)
		}
	}

	var lastErr error
	for _, url := range order {
		ep, err := m.Probe(ctx, url)
		if err == nil {
			slog.Info("backend endpoint live", "endpoint", ep.BaseURL)
			return ep, nil
		}
		lastErr = err
		slog.Debug("endpoint probe failed", "endpoint", url, "error", err)
	}

	m.mu.Lock()
	m.current.Live = false
	m.current.CheckedAt = m.now()
	m.mu.Unlock()

	if lastErr == nil {
		lastErr = errors.New("no endpoint candidates configured")
	}
	return Endpoint{}, &Error{Kind: Unreachable, Err: lastErr}
}

// Host returns the base URL of the most recently adopted endpoint, empty
// when none has ever been live. The URL is returned even while the
// endpoint is marked not-live: a cached response fetched from the same
// host is still host-consistent.
func (m *Manager) Host() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.BaseURL
}

// Current returns a copy of the endpoint state for status reporting.
func (m *Manager) Current() Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func classifyProbe(endpoint string, err error) *Error {
	var serr *statusError
	var nerr net.Error
	switch {
	case errors.As(err, &serr):
		return &Error{Kind: BadResponse, Endpoint: endpoint, Err: err}
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &nerr) && nerr.Timeout():
		return &Error{Kind: Timeout, Endpoint: endpoint, Err: err}
	default:
		return &Error{Kind: Unreachable, Endpoint: endpoint, Err: err}
	}
}

// tagsProber treats a 200 from GET /api/tags as proof of life, the same
// check the backend's own CLI uses.
type tagsProber struct {
	httpClient *http.Client
}

func (p *tagsProber) Probe(ctx context.Context, baseURL string) error {
	url := strings.TrimRight(baseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode}
	}
	return nil
}
