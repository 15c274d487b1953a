package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/leafwise/budtender/internal/products"
)

// FileSource serves the catalog from a local JSON file and reloads it when
// the file changes on disk, so a catalog update doesn't need a restart.
type FileSource struct {
	path string

	mu     sync.RWMutex
	items  []products.InventoryItem
	loaded bool
}

// NewFileSource creates a source for path. The file is read lazily on
// first Fetch; call Watch to enable hot reload.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch returns the cached catalog, loading the file on first use.
func (s *FileSource) Fetch(ctx context.Context) ([]products.InventoryItem, error) {
	s.mu.RLock()
	if s.loaded {
		items := s.items
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	if err := s.reload(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items, nil
}

// reload reads and parses the whole file, swapping the cached catalog only
// on success. A malformed edit keeps the previous good catalog in place.
func (s *FileSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading catalog file: %w", err)
	}
	items, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("parsing catalog file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.items = items
	s.loaded = true
	s.mu.Unlock()

	slog.Info("catalog file loaded", "path", s.path, "items", len(items))
	return nil
}

// Watch reloads the catalog whenever the file changes, until ctx is
// cancelled. Watching the parent directory instead of the file itself
// survives the rename-and-replace pattern editors and deploy scripts use.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.reload(); err != nil {
					slog.Warn("catalog reload failed, keeping previous catalog", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	return nil
}
