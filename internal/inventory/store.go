package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/storage"
)

// StoreSource serves the catalog out of the embedded SQLite store. Used
// when no HTTP or file catalog is configured.
type StoreSource struct {
	store *storage.Store
}

// NewStoreSource wraps a catalog store as a pipeline source.
func NewStoreSource(store *storage.Store) *StoreSource {
	return &StoreSource{store: store}
}

// Fetch lists the whole stored catalog. A row whose raw entry no longer
// parses is skipped with a warning rather than poisoning the fetch.
func (s *StoreSource) Fetch(ctx context.Context) ([]products.InventoryItem, error) {
	rows, err := s.store.ListItems(0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}

	items := make([]products.InventoryItem, 0, len(rows))
	for _, row := range rows {
		var item products.InventoryItem
		if err := json.Unmarshal([]byte(row.RawJSON), &item); err != nil {
			slog.Warn("skipping unparseable catalog row", "id", row.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
