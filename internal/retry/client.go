// Package retry executes single outbound HTTP calls with bounded retries
// and an escalating per-attempt timeout schedule. Later attempts get more
// time, not less: a backend that timed out once may simply be cold.
package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Request describes one logical outbound call. Idempotent must be set
// explicitly by the caller to allow retries; a request with side effects
// that are not safe to repeat is sent at most once.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
	Idempotent  bool
	ExpectJSON  bool
}

// Schedule is the declarative retry table: one timeout per attempt, and a
// backoff delay computed from the 1-based attempt number just failed.
type Schedule struct {
	Timeouts []time.Duration
	Backoff  func(attempt int) time.Duration
}

// DefaultSchedule allows three attempts at 60s/120s/240s with linear
// one-second backoff between them.
func DefaultSchedule() Schedule {
	return Schedule{
		Timeouts: []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second},
		Backoff:  LinearBackoff(time.Second),
	}
}

// LinearBackoff returns a backoff function yielding attempt × base.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Client sends requests per a fixed Schedule. The zero http.Client timeout
// is deliberate: each attempt carries its own context deadline.
type Client struct {
	httpClient *http.Client
	schedule   Schedule
}

// New creates a Client with the given schedule. Missing schedule parts
// fall back to DefaultSchedule values.
func New(schedule Schedule) *Client {
	if len(schedule.Timeouts) == 0 {
		schedule.Timeouts = DefaultSchedule().Timeouts
	}
	if schedule.Backoff == nil {
		schedule.Backoff = LinearBackoff(time.Second)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 0},
		schedule:   schedule,
	}
}

// Send executes req until it succeeds, a non-retriable classification is
// reached, or the schedule is exhausted. The returned error is always an
// *Error annotated with the attempt count and cumulative elapsed time.
func (c *Client) Send(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	var last *Error
	attempts := 0

	for i, timeout := range c.schedule.Timeouts {
		attempt := i + 1
		attempts = attempt

		data, aerr := c.attempt(ctx, req, timeout)
		if aerr == nil {
			return data, nil
		}
		last = aerr

		if !aerr.Retriable() || !req.Idempotent || attempt == len(c.schedule.Timeouts) {
			break
		}

		backoff := c.schedule.Backoff(attempt)
		slog.Warn("request attempt failed, retrying",
			"url", req.URL, "attempt", attempt, "kind", aerr.Kind.String(), "backoff", backoff)
		if !sleepFor(ctx, backoff) {
			break
		}
	}

	last.Attempts = attempts
	last.Elapsed = time.Since(start)
	return nil, last
}

// sleepFor waits d or until ctx is done, reporting whether the full delay
// elapsed.
func sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// attempt runs one bounded call. The per-attempt context deadline is the
// only thing that aborts an in-flight call; cancelling the parent context
// propagates through it.
func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) ([]byte, *Error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(actx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: NetworkUnavailable, Err: fmt.Errorf("creating request: %w", err)}
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:   ServerError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if req.ExpectJSON && !json.Valid(data) {
		return nil, &Error{Kind: MalformedPayload, Err: errors.New("response body is not valid JSON")}
	}
	return data, nil
}

// classifyTransport maps a transport-level failure onto the error taxonomy.
// Context cancellation counts as Timeout: the deadline that fired may be the
// attempt's own or an outer ceiling, and both mean the call was cut off.
func classifyTransport(err error) *Error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &nerr) && nerr.Timeout():
		return &Error{Kind: Timeout, Err: err}
	default:
		return &Error{Kind: NetworkUnavailable, Err: err}
	}
}
