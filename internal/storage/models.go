package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CatalogItem is one stored catalog entry. RawJSON holds the entry exactly
// as the source delivered it (catalogs mix numeric and string fields for
// potency and price); the products package owns normalization, the store
// only preserves.
type CatalogItem struct {
	ID        string
	Name      string
	Category  string
	RawJSON   string
	UpdatedAt time.Time
}
