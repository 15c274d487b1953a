package conn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// proberFunc adapts a function to the Prober interface.
type proberFunc func(ctx context.Context, baseURL string) error

func (f proberFunc) Probe(ctx context.Context, baseURL string) error {
	return f(ctx, baseURL)
}

// fakeClock hands out a controllable now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(candidates []string, p Prober, clk *fakeClock) *Manager {
	m := NewManager(Config{Candidates: candidates})
	m.prober = p
	m.now = clk.now
	return m
}

func TestProbe_SuccessAdoptsEndpoint(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		return nil
	}), clk)

	ep, err := m.Probe(context.Background(), "http://localhost:11434/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", ep.BaseURL)
	}
	if !ep.Live {
		t.Error("Live = false, want true")
	}
	if !ep.CheckedAt.Equal(clk.t) {
		t.Errorf("CheckedAt = %v, want %v", ep.CheckedAt, clk.t)
	}
	if got := m.Host(); got != "http://localhost:11434" {
		t.Errorf("Host() = %q, want adopted endpoint", got)
	}
}

func TestProbe_BadResponse(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		return &statusError{Code: 503}
	}), clk)

	_, err := m.Probe(context.Background(), "http://x:11434")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if cerr.Kind != BadResponse {
		t.Errorf("kind = %v, want BadResponse", cerr.Kind)
	}
	if m.Host() != "" {
		t.Errorf("Host() = %q, want empty (failed probe must not adopt)", m.Host())
	}
}

func TestProbe_Timeout(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		return context.DeadlineExceeded
	}), clk)

	_, err := m.Probe(context.Background(), "http://x:11434")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if cerr.Kind != Timeout {
		t.Errorf("kind = %v, want Timeout", cerr.Kind)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		return errors.New("connection refused")
	}), clk)

	_, err := m.Probe(context.Background(), "http://x:11434")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if cerr.Kind != Unreachable {
		t.Errorf("kind = %v, want Unreachable", cerr.Kind)
	}
}

func TestProbe_DeadlineApplied(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("probe context has no deadline")
		}
		return nil
	}), clk)

	if _, err := m.Probe(context.Background(), "http://x:11434"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureLive_FastPathSkipsNetwork(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	var probes atomic.Int32
	m := newTestManager([]string{"http://a:11434"}, proberFunc(func(ctx context.Context, baseURL string) error {
		probes.Add(1)
		return nil
	}), clk)

	if _, err := m.EnsureLive(context.Background()); err != nil {
		t.Fatalf("first EnsureLive: %v", err)
	}
	if n := probes.Load(); n != 1 {
		t.Fatalf("probes after first call = %d, want 1", n)
	}

	clk.advance(59 * time.Second)
	ep, err := m.EnsureLive(context.Background())
	if err != nil {
		t.Fatalf("second EnsureLive: %v", err)
	}
	if n := probes.Load(); n != 1 {
		t.Errorf("probes after fast path = %d, want 1 (no network call inside window)", n)
	}
	if ep.BaseURL != "http://a:11434" {
		t.Errorf("BaseURL = %q, want cached endpoint", ep.BaseURL)
	}
}

func TestEnsureLive_RecheckAfterWindow(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	var probes atomic.Int32
	m := newTestManager([]string{"http://a:11434"}, proberFunc(func(ctx context.Context, baseURL string) error {
		probes.Add(1)
		return nil
	}), clk)

	if _, err := m.EnsureLive(context.Background()); err != nil {
		t.Fatalf("first EnsureLive: %v", err)
	}
	clk.advance(61 * time.Second)
	if _, err := m.EnsureLive(context.Background()); err != nil {
		t.Fatalf("second EnsureLive: %v", err)
	}
	if n := probes.Load(); n != 2 {
		t.Errorf("probes = %d, want 2 (window expired, must re-probe)", n)
	}
}

func TestEnsureLive_WalksCandidatesInOrder(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	var tried []string
	m := newTestManager(
		[]string{"http://direct:11434", "http://proxy:8080", "http://same-origin"},
		proberFunc(func(ctx context.Context, baseURL string) error {
			tried = append(tried, baseURL)
			if baseURL == "http://proxy:8080" {
				return nil
			}
			return errors.New("connection refused")
		}), clk)

	ep, err := m.EnsureLive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.BaseURL != "http://proxy:8080" {
		t.Errorf("adopted %q, want first succeeding candidate", ep.BaseURL)
	}
	if len(tried) != 2 {
		t.Fatalf("tried %d candidates, want 2 (walk must stop at first success)", len(tried))
	}
	if tried[0] != "http://direct:11434" || tried[1] != "http://proxy:8080" {
		t.Errorf("probe order = %v, want configured order", tried)
	}
}

func TestEnsureLive_AllCandidatesFail(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(
		[]string{"http://a:11434", "http://b:11434"},
		proberFunc(func(ctx context.Context, baseURL string) error {
			return errors.New("connection refused")
		}), clk)

	_, err := m.EnsureLive(context.Background())
	if err == nil {
		t.Fatal("expected error when every candidate fails, got nil")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if cerr.Kind != Unreachable {
		t.Errorf("kind = %v, want Unreachable", cerr.Kind)
	}
	if m.Current().Live {
		t.Error("state still marked live after full walk failed")
	}
}

func TestEnsureLive_ReprobesCurrentFirstWithoutDuplicate(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	var tried []string
	alive := true
	m := newTestManager(
		[]string{"http://a:11434", "http://b:11434"},
		proberFunc(func(ctx context.Context, baseURL string) error {
			tried = append(tried, baseURL)
			if alive && baseURL == "http://b:11434" {
				return nil
			}
			return errors.New("connection refused")
		}), clk)

	// First discovery adopts b.
	if _, err := m.EnsureLive(context.Background()); err != nil {
		t.Fatalf("first EnsureLive: %v", err)
	}

	// Window expires and b dies: the walk starts at the current endpoint,
	// then covers the rest of the list exactly once.
	alive = false
	clk.advance(2 * time.Minute)
	tried = nil
	if _, err := m.EnsureLive(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}

	want := []string{"http://b:11434", "http://a:11434"}
	if len(tried) != len(want) {
		t.Fatalf("tried %v, want %v (no duplicate probe of current)", tried, want)
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Errorf("tried[%d] = %q, want %q", i, tried[i], want[i])
		}
	}
}

func TestEnsureLive_NoCandidates(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	m := newTestManager(nil, proberFunc(func(ctx context.Context, baseURL string) error {
		t.Error("prober called with no candidates configured")
		return nil
	}), clk)

	_, err := m.EnsureLive(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if cerr.Kind != Unreachable {
		t.Errorf("kind = %v, want Unreachable", cerr.Kind)
	}
}

func TestTagsProber_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	p := &tagsProber{httpClient: srv.Client()}
	if err := p.Probe(context.Background(), srv.URL); err != nil {
		t.Errorf("Probe = %v, want nil", err)
	}
}

func TestTagsProber_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &tagsProber{httpClient: srv.Client()}
	err := p.Probe(context.Background(), srv.URL)
	var serr *statusError
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T, want *statusError", err)
	}
	if serr.Code != http.StatusBadGateway {
		t.Errorf("code = %d, want 502", serr.Code)
	}
}

func TestTagsProber_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := &tagsProber{httpClient: &http.Client{}}
	if err := p.Probe(context.Background(), srv.URL); err == nil {
		t.Error("Probe against closed server = nil, want error")
	}
}
