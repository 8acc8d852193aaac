package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

func tempCache(t *testing.T, debounce time.Duration) *Cache {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "cache.json"), debounce, nil)
}

func TestLoadMissingFile(t *testing.T) {
	c := tempCache(t, 0)

	doc, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc != nil {
		t.Error("missing file must load as nil")
	}
}

func TestSaveThenLoad(t *testing.T) {
	c := tempCache(t, 0)

	doc := sheetformat.NewDocument()
	doc.Blocks[0].Content = "persisted"
	doc.SavedAt = time.Now()

	if err := c.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a document")
	}
	if loaded.Blocks[0].Content != "persisted" {
		t.Errorf("content = %q", loaded.Blocks[0].Content)
	}
}

func TestLoadPurgesStaleRecord(t *testing.T) {
	c := tempCache(t, 0)

	doc := sheetformat.NewDocument()
	doc.SavedAt = time.Now().Add(-25 * time.Hour)
	if err := c.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Error("stale record must load as nil")
	}

	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("stale cache file must be removed")
	}
}

func TestLoadTreatsMissingSavedAtAsStale(t *testing.T) {
	c := tempCache(t, 0)

	doc := sheetformat.NewDocument()
	if err := c.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Error("a record without a save timestamp must not be restored")
	}
}

func TestScheduleDebounces(t *testing.T) {
	c := tempCache(t, 50*time.Millisecond)

	first := sheetformat.NewDocument()
	first.Blocks[0].Content = "first"
	first.SavedAt = time.Now()
	c.Schedule(first)

	second := sheetformat.NewDocument()
	second.Blocks[0].Content = "second"
	second.SavedAt = time.Now()
	c.Schedule(second)

	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("nothing should be written before the debounce elapses")
	}

	time.Sleep(150 * time.Millisecond)

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected the debounced write to land")
	}
	if loaded.Blocks[0].Content != "second" {
		t.Errorf("content = %q, want the latest scheduled document", loaded.Blocks[0].Content)
	}
}

func TestFlushWritesPendingImmediately(t *testing.T) {
	c := tempCache(t, time.Hour)

	doc := sheetformat.NewDocument()
	doc.Blocks[0].Content = "pending"
	doc.SavedAt = time.Now()
	c.Schedule(doc)

	c.Flush()

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.Blocks[0].Content != "pending" {
		t.Error("Flush must write the pending document")
	}
}

func TestFlushWithNothingPending(t *testing.T) {
	c := tempCache(t, 0)
	c.Flush()

	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Error("Flush with nothing pending must not create a file")
	}
}
