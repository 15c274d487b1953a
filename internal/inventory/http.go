// Package inventory supplies raw catalog entries to the product pipeline
// and handles catalog ingest. Three sources exist: a configured HTTP URL,
// a watched JSON file, and the embedded SQLite store.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/leafwise/budtender/internal/products"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxCatalogBodySize  = 5 << 20 // 5MB
)

// HTTPSource fetches the catalog from a configured URL. A circuit breaker
// sits in front of the fetch so a dead catalog host is skipped quickly
// instead of stalling every search for the full timeout.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
}

// NewHTTPSource creates a source for url. A non-positive timeout falls
// back to 10s.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "inventory-fetch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("inventory breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &HTTPSource{
		url:        url,
		httpClient: &http.Client{},
		breaker:    cb,
		timeout:    timeout,
	}
}

// Fetch returns the catalog. Errors (including an open breaker) propagate
// to the pipeline, which treats them as an empty catalog.
func (s *HTTPSource) Fetch(ctx context.Context) ([]products.InventoryItem, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.fetchOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching catalog from %s: %w", s.url, err)
	}
	return result.([]products.InventoryItem), nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]products.InventoryItem, error) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading catalog body: %w", err)
	}

	items, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ParseCatalog decodes a flat JSON array of catalog entries.
func ParseCatalog(data []byte) ([]products.InventoryItem, error) {
	var items []products.InventoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return items, nil
}
