// Package cache persists the working document to a local file so a session
// survives a restart. Saved records go stale after a freshness window and
// are purged on load; autosaves are debounced to avoid I/O storms. There is
// no transactional guarantee: a crash loses at most one debounce interval.
package cache

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// FreshnessWindow is how long a saved record stays loadable.
const FreshnessWindow = 24 * time.Hour

// DefaultDebounce spaces autosave writes.
const DefaultDebounce = 2 * time.Second

// Cache is the local persistence gateway.
type Cache struct {
	path     string
	debounce time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *sheetformat.Document
}

// New creates a cache writing to path.
func New(path string, debounce time.Duration, log *zap.Logger) *Cache {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{path: path, debounce: debounce, log: log}
}

// Load reads the cached document. A missing file returns (nil, nil); a
// record older than the freshness window is purged and treated as absent.
func (c *Cache) Load() (*sheetformat.Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	doc, err := sheetformat.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache: %w", err)
	}

	if doc.SavedAt.IsZero() || time.Since(doc.SavedAt) > FreshnessWindow {
		c.log.Info("cached document is stale, purging",
			zap.Time("savedAt", doc.SavedAt))
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to purge stale cache", zap.Error(err))
		}
		return nil, nil
	}

	return doc, nil
}

// Save writes the document immediately.
func (c *Cache) Save(doc *sheetformat.Document) error {
	data, err := doc.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Schedule queues a debounced write of the document. Subsequent calls
// within the debounce interval replace the pending document and restart
// the timer.
func (c *Cache) Schedule(doc *sheetformat.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = doc
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.flush)
}

func (c *Cache) flush() {
	c.mu.Lock()
	doc := c.pending
	c.pending = nil
	c.mu.Unlock()

	if doc == nil {
		return
	}
	if err := c.Save(doc); err != nil {
		c.log.Warn("autosave failed", zap.Error(err))
		return
	}
	c.log.Debug("autosaved document", zap.Int("blocks", len(doc.Blocks)))
}

// Flush writes any pending document now and stops the timer. Called on
// shutdown.
func (c *Cache) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.flush()
}
