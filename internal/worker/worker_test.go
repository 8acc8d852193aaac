package worker

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

func blockWithItems(n int) sheetformat.Block {
	b := sheetformat.NewBlock()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "item-%03d\n", i)
	}
	b.Content = sb.String()
	return b
}

func waitOutcome(t *testing.T, ch <-chan generator.ExpandOutcome) generator.ExpandOutcome {
	t.Helper()
	select {
	case outcome := <-ch:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the expansion outcome")
		return generator.ExpandOutcome{}
	}
}

func TestExpandEnumeratesAllItems(t *testing.T) {
	w := New(nil)
	defer w.Stop()

	outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
		Blocks:   []sheetformat.Block{blockWithItems(55)},
		Settings: sheetformat.DefaultSettings(),
	}))

	if outcome.Err != nil {
		t.Fatalf("expansion failed: %v", outcome.Err)
	}
	if len(outcome.Requests) != 55 {
		t.Fatalf("expected 55 requests, got %d", len(outcome.Requests))
	}
	for i, req := range outcome.Requests {
		want := fmt.Sprintf("item-%03d", i)
		if req.Text != want {
			t.Errorf("requests[%d].Text = %q, want %q", i, req.Text, want)
		}
	}
}

func TestProgressCadence(t *testing.T) {
	w := New(nil)
	defer w.Stop()

	var mu sync.Mutex
	var reports []generator.Progress

	outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
		Blocks:   []sheetformat.Block{blockWithItems(55)},
		Settings: sheetformat.DefaultSettings(),
		OnProgress: func(p generator.Progress) {
			mu.Lock()
			reports = append(reports, p)
			mu.Unlock()
		},
	}))
	if outcome.Err != nil {
		t.Fatalf("expansion failed: %v", outcome.Err)
	}

	mu.Lock()
	defer mu.Unlock()

	// Every 10th item plus the final one: 10, 20, 30, 40, 50, 55.
	if len(reports) != 6 {
		t.Fatalf("expected 6 progress reports, got %d: %v", len(reports), reports)
	}
	prev := 0
	for _, p := range reports {
		if p.Current <= prev {
			t.Errorf("progress not strictly increasing: %v", reports)
		}
		if p.Total != 55 {
			t.Errorf("total = %d, want 55", p.Total)
		}
		prev = p.Current
	}
	final := reports[len(reports)-1]
	if final.Current != final.Total {
		t.Errorf("final report = %+v, want current == total", final)
	}
}

func TestProgressFinalOnExactMultiple(t *testing.T) {
	w := New(nil)
	defer w.Stop()

	var reports []generator.Progress
	outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
		Blocks:   []sheetformat.Block{blockWithItems(50)},
		Settings: sheetformat.DefaultSettings(),
		OnProgress: func(p generator.Progress) {
			reports = append(reports, p)
		},
	}))
	if outcome.Err != nil {
		t.Fatalf("expansion failed: %v", outcome.Err)
	}

	// 10..50; the final item coincides with a cadence point and is not doubled.
	if len(reports) != 5 {
		t.Fatalf("expected 5 progress reports, got %d: %v", len(reports), reports)
	}
	if last := reports[len(reports)-1]; last.Current != 50 || last.Total != 50 {
		t.Errorf("final report = %+v, want 50/50", last)
	}
}

func TestExpandEmptyInput(t *testing.T) {
	w := New(nil)
	defer w.Stop()

	fired := false
	outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
		Settings: sheetformat.DefaultSettings(),
		OnProgress: func(generator.Progress) {
			fired = true
		},
	}))

	if outcome.Err != nil {
		t.Fatalf("expansion failed: %v", outcome.Err)
	}
	if len(outcome.Requests) != 0 {
		t.Errorf("expected no requests, got %d", len(outcome.Requests))
	}
	if fired {
		t.Error("no progress expected for an empty run")
	}
}

func TestExpandAfterStop(t *testing.T) {
	w := New(nil)
	w.Stop()

	outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
		Blocks:   []sheetformat.Block{blockWithItems(5)},
		Settings: sheetformat.DefaultSettings(),
	}))

	if outcome.Err == nil {
		t.Fatal("expected an error from a stopped worker")
	}
}

func TestSequentialJobs(t *testing.T) {
	w := New(nil)
	defer w.Stop()

	for i := 1; i <= 3; i++ {
		outcome := waitOutcome(t, w.Expand(generator.ExpandRequest{
			Blocks:   []sheetformat.Block{blockWithItems(i * 10)},
			Settings: sheetformat.DefaultSettings(),
		}))
		if outcome.Err != nil {
			t.Fatalf("job %d failed: %v", i, outcome.Err)
		}
		if len(outcome.Requests) != i*10 {
			t.Errorf("job %d: got %d requests, want %d", i, len(outcome.Requests), i*10)
		}
	}
}
