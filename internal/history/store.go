// Package history holds the live document state behind a bounded undo/redo
// log. Every mutation of blocks or settings records a snapshot first;
// generation results, progress, and the generating flag are tracked outside
// the undo history.
package history

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// DefaultLimit bounds the snapshot log; the oldest entry is evicted first.
const DefaultLimit = 20

// Snapshot is a deep copy of blocks plus settings at one point in time.
type Snapshot struct {
	Blocks   []sheetformat.Block
	Settings sheetformat.GlobalSettings
}

// Store is the undoable state container.
type Store struct {
	mu sync.RWMutex

	blocks    []sheetformat.Block
	settings  sheetformat.GlobalSettings
	createdAt time.Time

	snapshots []Snapshot
	cursor    int
	limit     int

	codes      []generator.GeneratedCode
	errors     []generator.ValidationError
	generating bool
	progress   generator.Progress

	subscribers []func()
}

// New returns a store seeded with one default block and default settings.
func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		blocks:    []sheetformat.Block{sheetformat.NewBlock()},
		settings:  sheetformat.DefaultSettings(),
		createdAt: time.Now(),
		cursor:    -1,
		limit:     limit,
	}
}

// Subscribe registers a callback invoked after every state change.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}

// record appends a deep copy of the live state before a mutation is applied,
// discarding any redo tail. When the log exceeds the bound the oldest entry
// is evicted and the cursor keeps identifying the entry just appended.
// Callers hold the write lock.
func (s *Store) record() {
	s.snapshots = s.snapshots[:s.cursor+1]
	s.snapshots = append(s.snapshots, s.cloneState())
	if len(s.snapshots) > s.limit {
		s.snapshots = s.snapshots[1:]
	} else {
		s.cursor++
	}
}

func (s *Store) cloneState() Snapshot {
	return Snapshot{
		Blocks:   sheetformat.CloneBlocks(s.blocks),
		Settings: s.settings,
	}
}

func (s *Store) restore(snap Snapshot) {
	s.blocks = sheetformat.CloneBlocks(snap.Blocks)
	s.settings = snap.Settings
}

// Undo steps the cursor back one snapshot. The live state is stashed at the
// tip of the log on the first undo of a run so a redo can reach it again.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if s.cursor <= 0 {
		s.mu.Unlock()
		return false
	}
	if s.cursor == len(s.snapshots)-1 && !reflect.DeepEqual(s.cloneState(), s.snapshots[s.cursor]) {
		s.snapshots = append(s.snapshots, s.cloneState())
		if len(s.snapshots) > s.limit {
			s.snapshots = s.snapshots[1:]
		}
		s.cursor = len(s.snapshots) - 1
	}
	s.cursor--
	s.restore(s.snapshots[s.cursor])
	s.mu.Unlock()

	s.notify()
	return true
}

// Redo steps the cursor forward one snapshot.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if s.cursor >= len(s.snapshots)-1 {
		s.mu.Unlock()
		return false
	}
	s.cursor++
	s.restore(s.snapshots[s.cursor])
	s.mu.Unlock()

	s.notify()
	return true
}

// CanUndo reports whether an undo would change state.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor > 0
}

// CanRedo reports whether a redo would change state.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor < len(s.snapshots)-1
}

// Reset clears the history entirely and restores the initial single-block
// state. There is no undo across a reset.
func (s *Store) Reset() {
	s.mu.Lock()
	s.blocks = []sheetformat.Block{sheetformat.NewBlock()}
	s.settings = sheetformat.DefaultSettings()
	s.createdAt = time.Now()
	s.snapshots = nil
	s.cursor = -1
	s.codes = nil
	s.errors = nil
	s.generating = false
	s.progress = generator.Progress{}
	s.mu.Unlock()

	s.notify()
}

// Blocks returns a deep copy of the live blocks.
func (s *Store) Blocks() []sheetformat.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sheetformat.CloneBlocks(s.blocks)
}

// Settings returns the live settings.
func (s *Store) Settings() sheetformat.GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// AddBlock appends a fresh block and returns a copy of it.
func (s *Store) AddBlock() sheetformat.Block {
	s.mu.Lock()
	s.record()
	b := sheetformat.NewBlock()
	s.blocks = append(s.blocks, b)
	s.mu.Unlock()

	s.notify()
	return b
}

// RemoveBlock deletes a block. Removal is refused when exactly one block
// remains; a live state always has at least one block.
func (s *Store) RemoveBlock(id string) error {
	s.mu.Lock()
	if len(s.blocks) <= 1 {
		s.mu.Unlock()
		return fmt.Errorf("cannot remove the last block")
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("block not found: %s", id)
	}
	s.record()
	s.blocks = append(s.blocks[:idx], s.blocks[idx+1:]...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// UpdateBlock replaces a block's editable fields, keeping its id.
func (s *Store) UpdateBlock(id string, patch sheetformat.Block) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("block not found: %s", id)
	}
	s.record()
	patch.ID = id
	s.blocks[idx] = patch
	s.mu.Unlock()

	s.notify()
	return nil
}

// DuplicateBlock copies a block under a fresh id, inserted right after the
// original.
func (s *Store) DuplicateBlock(id string) (sheetformat.Block, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return sheetformat.Block{}, fmt.Errorf("block not found: %s", id)
	}
	s.record()
	dup := s.blocks[idx]
	dup.ID = sheetformat.NewBlock().ID
	s.blocks = append(s.blocks[:idx+1], append([]sheetformat.Block{dup}, s.blocks[idx+1:]...)...)
	s.mu.Unlock()

	s.notify()
	return dup, nil
}

// MoveBlock reorders a block to the given index.
func (s *Store) MoveBlock(id string, to int) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("block not found: %s", id)
	}
	if to < 0 || to >= len(s.blocks) {
		s.mu.Unlock()
		return fmt.Errorf("index out of range: %d", to)
	}
	s.record()
	b := s.blocks[idx]
	s.blocks = append(s.blocks[:idx], s.blocks[idx+1:]...)
	s.blocks = append(s.blocks[:to], append([]sheetformat.Block{b}, s.blocks[to:]...)...)
	s.mu.Unlock()

	s.notify()
	return nil
}

// UpdateSettings replaces the global settings.
func (s *Store) UpdateSettings(settings sheetformat.GlobalSettings) {
	s.mu.Lock()
	s.record()
	s.settings = settings
	s.mu.Unlock()

	s.notify()
}

// ImportDocument applies an imported document as one undoable step.
// Settings are replaced only when includeSettings is set; CSV imports carry
// blocks only.
func (s *Store) ImportDocument(doc *sheetformat.Document, includeSettings bool) error {
	if len(doc.Blocks) == 0 {
		return fmt.Errorf("at least one block is required")
	}
	s.mu.Lock()
	s.record()
	s.blocks = sheetformat.CloneBlocks(doc.Blocks)
	if includeSettings {
		s.settings = doc.Settings
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetResults stores a generation run's outcome. Results are replaced
// wholesale and do not create an undo checkpoint.
func (s *Store) SetResults(res *generator.Result) {
	s.mu.Lock()
	s.codes = append([]generator.GeneratedCode(nil), res.Codes...)
	s.errors = append([]generator.ValidationError(nil), res.Errors...)
	s.generating = false
	s.mu.Unlock()

	s.notify()
}

// Results returns copies of the last run's codes and errors.
func (s *Store) Results() ([]generator.GeneratedCode, []generator.ValidationError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := append([]generator.GeneratedCode(nil), s.codes...)
	errs := append([]generator.ValidationError(nil), s.errors...)
	return codes, errs
}

// SetGenerating flips the in-flight flag. Non-recording.
func (s *Store) SetGenerating(on bool) {
	s.mu.Lock()
	s.generating = on
	if on {
		s.progress = generator.Progress{}
	}
	s.mu.Unlock()

	s.notify()
}

// Generating reports whether a run is in flight.
func (s *Store) Generating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generating
}

// SetProgress updates enumeration progress for an in-flight delegated run.
// Non-recording.
func (s *Store) SetProgress(p generator.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()

	s.notify()
}

// Progress returns the last reported enumeration progress.
func (s *Store) Progress() generator.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Hydrate replaces the live state from a restored document without
// recording history; a restored session starts with an empty undo log.
func (s *Store) Hydrate(doc *sheetformat.Document) {
	s.mu.Lock()
	s.blocks = sheetformat.CloneBlocks(doc.Blocks)
	s.settings = doc.Settings
	if !doc.CreatedAt.IsZero() {
		s.createdAt = doc.CreatedAt
	}
	s.snapshots = nil
	s.cursor = -1
	s.mu.Unlock()

	s.notify()
}

// Document captures the live state as a persistable document.
func (s *Store) Document() *sheetformat.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &sheetformat.Document{
		Version:   sheetformat.Version,
		CreatedAt: s.createdAt,
		SavedAt:   time.Now(),
		Settings:  s.settings,
		Blocks:    sheetformat.CloneBlocks(s.blocks),
	}
}

// indexOf finds a block by id. Callers hold the lock.
func (s *Store) indexOf(id string) int {
	for i, b := range s.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
