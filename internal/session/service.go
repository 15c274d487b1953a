// Package session is the only surface presentation code may talk to. It
// owns per-session request lifecycles: a new submission supersedes the
// previous in-flight one, status transitions stream to subscribers, and
// the last successful response is readable through the cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leafwise/budtender/internal/cache"
	"github.com/leafwise/budtender/internal/guidance"
	"github.com/leafwise/budtender/internal/metrics"
)

// State is the externally visible lifecycle of one submission.
type State string

const (
	StatePending  State = "pending"
	StatePartial  State = "partial"
	StateComplete State = "complete"
	StateError    State = "error"
)

// StatusEvent is one lifecycle transition, published to subscribers of the
// session. Response is set on partial/complete/error; Error only on error.
type StatusEvent struct {
	SessionID string             `json:"session_id"`
	RequestID string             `json:"request_id"`
	State     State              `json:"state"`
	Response  *guidance.Response `json:"response,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// terminal reports whether no further events follow for this request.
func (e StatusEvent) terminal() bool {
	return e.State != StatePending
}

// Ticket acknowledges a submission.
type Ticket struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	State     State  `json:"state"`
}

// Handler answers one guidance request. Implemented by
// guidance.Orchestrator.
type Handler interface {
	Handle(ctx context.Context, req guidance.Request) (guidance.Response, error)
}

// ResponseCache is the slice of the cache the service uses.
type ResponseCache interface {
	Put(ctx context.Context, sessionKey string, resp guidance.Response) error
	Get(ctx context.Context, sessionKey string) (guidance.Response, error)
}

// sessionState tracks the in-flight request for one session. seq increases
// on every submission; a finishing request whose seq no longer matches was
// superseded and must not publish or write the cache. done serializes
// completions so a superseded request's cache write can never land after
// the newer request's.
type sessionState struct {
	seq    uint64
	cancel context.CancelFunc
	done   sync.Mutex
}

// Service runs submissions through the orchestrator with single-flight
// semantics per session.
type Service struct {
	handler Handler
	cache   ResponseCache

	mu       sync.Mutex
	sessions map[string]*sessionState
	subs     map[string]map[chan StatusEvent]struct{}
	closed   bool
}

// NewService creates a Service over the orchestrator and cache.
func NewService(handler Handler, responses ResponseCache) *Service {
	return &Service{
		handler:  handler,
		cache:    responses,
		sessions: make(map[string]*sessionState),
		subs:     make(map[string]map[chan StatusEvent]struct{}),
	}
}

// Submit starts a guidance request for the session and returns immediately
// with a pending ticket. Any previous in-flight request for the same
// session is cancelled first; even if its network calls finish later, its
// result is discarded at publish time.
func (s *Service) Submit(ctx context.Context, sessionID, rawQuery string, level guidance.ExperienceLevel) (*Ticket, error) {
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return nil, errors.New("query must not be empty")
	}
	if sessionID == "" {
		return nil, errors.New("session id must not be empty")
	}

	req := guidance.NewRequest(rawQuery, level)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("service is shut down")
	}
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		s.sessions[sessionID] = st
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
		metrics.SupersededRequests.Inc()
		slog.Debug("superseding in-flight request", "session_id", sessionID)
	}
	st.seq++
	mySeq := st.seq

	// Detached from the caller's context: the request keeps running after
	// the HTTP submit returns. Only supersession or Close cancels it.
	runCtx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	s.mu.Unlock()

	metrics.GuidanceRequests.Inc()
	s.publish(StatusEvent{SessionID: sessionID, RequestID: req.RequestID, State: StatePending})

	go s.run(runCtx, sessionID, mySeq, req)

	return &Ticket{SessionID: sessionID, RequestID: req.RequestID, State: StatePending}, nil
}

func (s *Service) run(ctx context.Context, sessionID string, seq uint64, req guidance.Request) {
	start := time.Now()
	resp, err := s.handler.Handle(ctx, req)
	metrics.ObserveHandle(start, resp.PartialFailure)

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || st.seq != seq {
		s.mu.Unlock()
		slog.Debug("dropping result of superseded request",
			"session_id", sessionID, "request_id", req.RequestID)
		return
	}
	st.cancel = nil
	s.mu.Unlock()

	// Completions for one session run one at a time. A request superseded
	// while it is still writing the cache finishes its write before the
	// newer result's begins, so the newer write is the one that sticks.
	st.done.Lock()
	defer st.done.Unlock()

	event := StatusEvent{SessionID: sessionID, RequestID: req.RequestID}

	if err != nil {
		// Total connectivity failure: the one case surfaced as an error.
		// The degraded response still rides along for rendering, but a
		// fully canned answer is not worth caching.
		if !s.current(sessionID, seq) {
			return
		}
		event.State = StateError
		event.Error = err.Error()
		event.Response = &resp
		s.publish(event)
		return
	}

	if cacheErr := s.cache.Put(ctx, sessionID, resp); cacheErr != nil {
		slog.Warn("failed to cache guidance response", "session_id", sessionID, "error", cacheErr)
	}

	// The cache write may have straddled a supersession; the newer
	// request's write is queued behind ours, but our event must not
	// reach subscribers.
	if !s.current(sessionID, seq) {
		slog.Debug("dropping result of superseded request",
			"session_id", sessionID, "request_id", req.RequestID)
		return
	}

	if resp.PartialFailure {
		event.State = StatePartial
	} else {
		event.State = StateComplete
	}
	event.Response = &resp
	s.publish(event)
}

// current reports whether seq is still the session's latest submission.
func (s *Service) current(sessionID string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.sessions[sessionID]
	return st != nil && st.seq == seq
}

// ReadLast returns the cached response for the session. Missing or invalid
// entries report false, never an error: the cache is an optimization.
func (s *Service) ReadLast(ctx context.Context, sessionID string) (guidance.Response, bool) {
	resp, err := s.cache.Get(ctx, sessionID)
	if err == nil {
		metrics.CacheHits.Inc()
		return resp, true
	}

	var inv *cache.Invalid
	switch {
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheMisses.Inc()
	case errors.As(err, &inv):
		metrics.CacheEvictions.WithLabelValues(inv.Reason.String()).Inc()
		slog.Debug("cached response invalidated", "session_id", sessionID, "reason", inv.Reason.String())
	default:
		slog.Warn("cache read failed", "session_id", sessionID, "error", err)
	}
	return guidance.Response{}, false
}

// Subscribe returns a channel of status events for the session plus a
// cancel func the caller must invoke when done. Slow subscribers lose
// events rather than blocking the pipeline.
func (s *Service) Subscribe(sessionID string) (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, 8)

	s.mu.Lock()
	set, ok := s.subs[sessionID]
	if !ok {
		set = make(map[chan StatusEvent]struct{})
		s.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(s.subs, sessionID)
				}
			}
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Service) publish(event StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Ask submits a query and blocks until its terminal event or ctx expiry.
// Convenience for synchronous consumers (MCP tools, the CLI).
func (s *Service) Ask(ctx context.Context, sessionID, rawQuery string, level guidance.ExperienceLevel) (guidance.Response, error) {
	events, cancel := s.Subscribe(sessionID)
	defer cancel()

	ticket, err := s.Submit(ctx, sessionID, rawQuery, level)
	if err != nil {
		return guidance.Response{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return guidance.Response{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return guidance.Response{}, errors.New("subscription closed")
			}
			if ev.RequestID != ticket.RequestID || !ev.terminal() {
				continue
			}
			if ev.State == StateError {
				if ev.Response != nil {
					return *ev.Response, fmt.Errorf("guidance degraded: %s", ev.Error)
				}
				return guidance.Response{}, errors.New(ev.Error)
			}
			return *ev.Response, nil
		}
	}
}

// Close cancels all in-flight requests. The service rejects submissions
// afterwards; subscribers keep their channels until they cancel.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, st := range s.sessions {
		if st.cancel != nil {
			st.cancel()
			st.cancel = nil
		}
	}
}
