package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leafwise/budtender/internal/cache"
	"github.com/leafwise/budtender/internal/guidance"
)

// handlerFunc adapts a function to the Handler interface.
type handlerFunc func(ctx context.Context, req guidance.Request) (guidance.Response, error)

func (f handlerFunc) Handle(ctx context.Context, req guidance.Request) (guidance.Response, error) {
	return f(ctx, req)
}

// recordingCache records Puts in order and serves the latest.
type recordingCache struct {
	mu   sync.Mutex
	puts []guidance.Response
}

func (c *recordingCache) Put(ctx context.Context, key string, resp guidance.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, resp)
	return nil
}

func (c *recordingCache) Get(ctx context.Context, key string) (guidance.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.puts) == 0 {
		return guidance.Response{}, cache.ErrMiss
	}
	return c.puts[len(c.puts)-1], nil
}

func (c *recordingCache) all() []guidance.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]guidance.Response, len(c.puts))
	copy(out, c.puts)
	return out
}

func okResponse(query string) guidance.Response {
	return guidance.Response{Query: query, AIText: "answer for " + query + "\n\nmore"}
}

func waitTerminal(t *testing.T, events <-chan StatusEvent, requestID string) StatusEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("subscription closed before terminal event")
			}
			if ev.RequestID == requestID && ev.State != StatePending {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

func TestSubmit_CompletesAndCaches(t *testing.T) {
	store := &recordingCache{}
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), nil
	}), store)
	defer svc.Close()

	events, cancel := svc.Subscribe("sess")
	defer cancel()

	ticket, err := svc.Submit(context.Background(), "sess", "help me sleep", guidance.LevelNew)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ticket.State != StatePending {
		t.Errorf("ticket state = %q, want pending", ticket.State)
	}

	ev := waitTerminal(t, events, ticket.RequestID)
	if ev.State != StateComplete {
		t.Errorf("terminal state = %q, want complete", ev.State)
	}
	if ev.Response == nil || ev.Response.Query != "help me sleep" {
		t.Errorf("event response = %v, want the handled response", ev.Response)
	}

	got, ok := svc.ReadLast(context.Background(), "sess")
	if !ok {
		t.Fatal("ReadLast reported miss after completion")
	}
	if got.Query != "help me sleep" {
		t.Errorf("cached query = %q, want submitted query", got.Query)
	}
}

func TestSubmit_PartialFailurePublishesPartial(t *testing.T) {
	store := &recordingCache{}
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		resp := okResponse(req.RawQuery)
		resp.PartialFailure = true
		return resp, nil
	}), store)
	defer svc.Close()

	events, cancel := svc.Subscribe("sess")
	defer cancel()

	ticket, err := svc.Submit(context.Background(), "sess", "anything", guidance.LevelCasual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev := waitTerminal(t, events, ticket.RequestID); ev.State != StatePartial {
		t.Errorf("terminal state = %q, want partial", ev.State)
	}
	if len(store.all()) != 1 {
		t.Errorf("cache puts = %d, want partial responses cached too", len(store.all()))
	}
}

func TestSubmit_ErrorStateNotCached(t *testing.T) {
	store := &recordingCache{}
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), errors.New("no endpoint reachable")
	}), store)
	defer svc.Close()

	events, cancel := svc.Subscribe("sess")
	defer cancel()

	ticket, _ := svc.Submit(context.Background(), "sess", "anything", guidance.LevelNew)
	ev := waitTerminal(t, events, ticket.RequestID)
	if ev.State != StateError {
		t.Errorf("terminal state = %q, want error", ev.State)
	}
	if ev.Error == "" {
		t.Error("error event carries no message")
	}
	if len(store.all()) != 0 {
		t.Error("fully failed response was cached")
	}
}

func TestSubmit_SupersessionDropsLateResult(t *testing.T) {
	store := &recordingCache{}

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var mu sync.Mutex
	firstCancelled := false

	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		if req.RawQuery == "first" {
			close(firstStarted)
			select {
			case <-ctx.Done():
				mu.Lock()
				firstCancelled = true
				mu.Unlock()
			case <-time.After(5 * time.Second):
			}
			// Ignore cancellation and finish late anyway; the service
			// must still discard this result.
			<-releaseFirst
			return okResponse("first"), nil
		}
		return okResponse("second"), nil
	}), store)
	defer svc.Close()

	events, cancel := svc.Subscribe("sess")
	defer cancel()

	if _, err := svc.Submit(context.Background(), "sess", "first", guidance.LevelNew); err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	<-firstStarted

	second, err := svc.Submit(context.Background(), "sess", "second", guidance.LevelNew)
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	if ev := waitTerminal(t, events, second.RequestID); ev.State != StateComplete {
		t.Errorf("second terminal state = %q, want complete", ev.State)
	}

	// Now let the superseded first request finish late.
	close(releaseFirst)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	cancelled := firstCancelled
	mu.Unlock()
	if !cancelled {
		t.Error("first request's context was not cancelled on supersession")
	}

	puts := store.all()
	if len(puts) != 1 || puts[0].Query != "second" {
		t.Fatalf("cache puts = %+v, want exactly the second response", puts)
	}
	if got, ok := svc.ReadLast(context.Background(), "sess"); !ok || got.Query != "second" {
		t.Errorf("ReadLast = %v/%v, want the second response to stay visible", got.Query, ok)
	}
}

// stallingCache blocks its first Put until released, like a Redis write
// hanging on a slow network.
type stallingCache struct {
	recordingCache
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *stallingCache) Put(ctx context.Context, key string, resp guidance.Response) error {
	c.once.Do(func() {
		close(c.started)
		<-c.release
	})
	return c.recordingCache.Put(ctx, key, resp)
}

func TestSubmit_SupersessionDuringCacheWrite(t *testing.T) {
	store := &stallingCache{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), nil
	}), store)
	defer svc.Close()

	events, cancel := svc.Subscribe("sess")
	defer cancel()

	first, err := svc.Submit(context.Background(), "sess", "first", guidance.LevelNew)
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}

	// Wait for the first completion to stall mid cache write, then
	// supersede it.
	<-store.started
	second, err := svc.Submit(context.Background(), "sess", "second", guidance.LevelNew)
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	close(store.release)

	if ev := waitTerminal(t, events, second.RequestID); ev.State != StateComplete {
		t.Errorf("second terminal state = %q, want complete", ev.State)
	}

	puts := store.all()
	if len(puts) == 0 || puts[len(puts)-1].Query != "second" {
		t.Fatalf("last cache write = %+v, want the second response to win", puts)
	}
	if got, ok := svc.ReadLast(context.Background(), "sess"); !ok || got.Query != "second" {
		t.Errorf("ReadLast = %q/%v, want the second response to stay visible", got.Query, ok)
	}

	// The superseded write must not surface to subscribers either.
	select {
	case ev := <-events:
		if ev.RequestID == first.RequestID && ev.State != StatePending {
			t.Errorf("superseded request published terminal event %q", ev.State)
		}
	default:
	}
}

func TestSubmit_RejectsEmptyQuery(t *testing.T) {
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		t.Error("handler called for empty query")
		return guidance.Response{}, nil
	}), &recordingCache{})
	defer svc.Close()

	if _, err := svc.Submit(context.Background(), "sess", "   ", guidance.LevelNew); err == nil {
		t.Error("Submit accepted an empty query")
	}
}

func TestReadLast_MissReportsFalse(t *testing.T) {
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), nil
	}), &recordingCache{})
	defer svc.Close()

	if _, ok := svc.ReadLast(context.Background(), "unknown"); ok {
		t.Error("ReadLast reported a hit for an unknown session")
	}
}

func TestAsk_BlocksUntilTerminal(t *testing.T) {
	svc := NewService(handlerFunc(func(ctx context.Context, req guidance.Request) (guidance.Response, error) {
		return okResponse(req.RawQuery), nil
	}), &recordingCache{})
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := svc.Ask(ctx, "sess", "quick question", guidance.LevelNew)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Query != "quick question" {
		t.Errorf("Query = %q, want submitted query", resp.Query)
	}
}
