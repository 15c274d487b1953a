package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/leafwise/budtender/internal/products"
	"github.com/leafwise/budtender/internal/storage"
)

// Importer loads catalog entries into the embedded store.
type Importer struct {
	store *storage.Store
}

// NewImporter creates an Importer writing to store.
func NewImporter(store *storage.Store) *Importer {
	return &Importer{store: store}
}

// ImportFile reads a JSON catalog file and upserts every entry, returning
// the number imported.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading catalog file: %w", err)
	}
	items, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	return im.ImportItems(ctx, items)
}

// ImportItems upserts entries concurrently with bounded parallelism.
// Any entry failing fails the whole import; partial imports are visible
// (upserts are per-row) but the count is only returned on full success.
func (im *Importer) ImportItems(ctx context.Context, items []products.InventoryItem) (int, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency; the store serializes writes anyway.

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			row, err := toRow(item)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			if err := im.store.UpsertItem(row); err != nil {
				return fmt.Errorf("upserting %s: %w", row.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Replace swaps the whole stored catalog for items atomically.
func (im *Importer) Replace(ctx context.Context, items []products.InventoryItem) (int, error) {
	rows := make([]storage.CatalogItem, 0, len(items))
	for i, item := range items {
		row, err := toRow(item)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	if err := im.store.ReplaceAll(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// AttachCOA extracts the regulated-compound percent from a certificate of
// analysis PDF and writes it onto the stored item, so the legal filter can
// verify entries whose source catalog carried no lab value.
func (im *Importer) AttachCOA(ctx context.Context, itemID, pdfPath string) (float64, error) {
	pct, err := ExtractCompoundPercent(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("extracting COA percent: %w", err)
	}

	row, err := im.store.GetItem(itemID)
	if err != nil {
		return 0, fmt.Errorf("loading item %s: %w", itemID, err)
	}

	var item products.InventoryItem
	if err := json.Unmarshal([]byte(row.RawJSON), &item); err != nil {
		return 0, fmt.Errorf("parsing stored item %s: %w", itemID, err)
	}
	item.CompoundPercent = pct

	updated, err := toRow(item)
	if err != nil {
		return 0, err
	}
	if err := im.store.UpsertItem(updated); err != nil {
		return 0, fmt.Errorf("saving item %s: %w", itemID, err)
	}
	return pct, nil
}

func toRow(item products.InventoryItem) (storage.CatalogItem, error) {
	if item.ID == "" {
		return storage.CatalogItem{}, fmt.Errorf("catalog entry %q has no id", item.Name)
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return storage.CatalogItem{}, fmt.Errorf("encoding entry %s: %w", item.ID, err)
	}
	return storage.CatalogItem{
		ID:       item.ID,
		Name:     item.Name,
		Category: item.Category,
		RawJSON:  string(raw),
	}, nil
}
