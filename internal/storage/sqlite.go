// Package storage is the embedded SQLite catalog store. It is the
// fallback inventory source when no HTTP or file catalog is configured,
// and the destination for `budtender catalog import`.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the product catalog.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "budtender.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Catalog ---

// UpsertItem inserts or replaces a catalog item by ID.
func (s *Store) UpsertItem(item CatalogItem) error {
	if item.ID == "" {
		return fmt.Errorf("catalog item has no id")
	}
	updatedAt := item.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO catalog_items (id, name, category, raw_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Category, item.RawJSON, updatedAt.Format(time.RFC3339),
	)
	return err
}

// GetItem returns one catalog item by ID.
func (s *Store) GetItem(id string) (CatalogItem, error) {
	var item CatalogItem
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT id, name, category, raw_json, updated_at
		FROM catalog_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Category, &item.RawJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return CatalogItem{}, ErrNotFound
	}
	if err != nil {
		return CatalogItem{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return CatalogItem{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	item.UpdatedAt = t
	return item, nil
}

// ListItems returns catalog items in insertion order (by rowid) so the
// ranking stage's tie-break stays deterministic across runs.
func (s *Store) ListItems(limit, offset int) ([]CatalogItem, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.Query(`
		SELECT id, name, category, raw_json, updated_at
		FROM catalog_items ORDER BY rowid ASC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CatalogItem
	for rows.Next() {
		var item CatalogItem
		var updatedAt string
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.RawJSON, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		item.UpdatedAt = t
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItems returns the number of stored catalog items.
func (s *Store) CountItems() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM catalog_items").Scan(&n)
	return n, err
}

// DeleteItem removes one catalog item.
func (s *Store) DeleteItem(id string) error {
	res, err := s.db.Exec("DELETE FROM catalog_items WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll swaps the whole catalog for items in a single transaction, so
// readers never observe a half-imported catalog.
func (s *Store) ReplaceAll(items []CatalogItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM catalog_items"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing catalog: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, item := range items {
		if item.ID == "" {
			tx.Rollback()
			return fmt.Errorf("catalog item %q has no id", item.Name)
		}
		if _, err := tx.Exec(`
			INSERT INTO catalog_items (id, name, category, raw_json, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.Category, item.RawJSON, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}
