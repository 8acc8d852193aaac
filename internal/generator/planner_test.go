package generator

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// fakeDelegator runs the expansion inline and records the call.
type fakeDelegator struct {
	called bool
	fail   error
}

func (f *fakeDelegator) Expand(req ExpandRequest) <-chan ExpandOutcome {
	f.called = true
	out := make(chan ExpandOutcome, 1)
	if f.fail != nil {
		out <- ExpandOutcome{Err: f.fail}
		return out
	}

	requests := Expand(req.Blocks, req.Settings)
	if req.OnProgress != nil {
		req.OnProgress(Progress{Current: len(requests), Total: len(requests)})
	}
	out <- ExpandOutcome{Requests: requests}
	return out
}

func qrBlock(content string) sheetformat.Block {
	b := sheetformat.NewBlock()
	b.Content = content
	return b
}

func barcodeBlock(format sheetformat.BarcodeFormat, content string) sheetformat.Block {
	b := sheetformat.NewBlock()
	b.CodeType = sheetformat.CodeTypeBarcode
	b.BarcodeFormat = format
	b.Content = content
	return b
}

func TestGenerateMixedValidity(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 0)
	blocks := []sheetformat.Block{
		barcodeBlock(sheetformat.FormatEAN13, "123456789012\n12345678901"),
	}

	result, err := planner.Generate(blocks, sheetformat.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(result.Codes) != 1 {
		t.Fatalf("expected 1 code, got %d", len(result.Codes))
	}
	if result.Codes[0].Text != "123456789012" {
		t.Errorf("unexpected code text %q", result.Codes[0].Text)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	e := result.Errors[0]
	if e.Kind != ErrValidationFailed {
		t.Errorf("error kind = %s, want %s", e.Kind, ErrValidationFailed)
	}
	if e.LineNumber != 2 {
		t.Errorf("error line = %d, want 2", e.LineNumber)
	}
	if e.Text != "12345678901" {
		t.Errorf("error text = %q", e.Text)
	}
}

func TestGenerateCommaDelimiter(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 0)
	settings := sheetformat.DefaultSettings()
	settings.Delimiter = sheetformat.DelimiterComma

	result, err := planner.Generate([]sheetformat.Block{qrBlock("A,B,,C")}, settings, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(result.Codes) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(result.Codes))
	}
	for i, want := range []string{"A", "B", "C"} {
		if result.Codes[i].Text != want {
			t.Errorf("codes[%d].Text = %q, want %q", i, result.Codes[i].Text, want)
		}
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

func TestGenerateIsRepeatable(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 0)
	blocks := []sheetformat.Block{
		qrBlock("alpha\nbeta"),
		barcodeBlock(sheetformat.FormatCODE128, "SKU-1\nSKU-2\nbad\thab"),
	}
	settings := sheetformat.DefaultSettings()

	first, err := planner.Generate(blocks, settings, nil)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := planner.Generate(blocks, settings, nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(first.Codes) != len(second.Codes) || len(first.Errors) != len(second.Errors) {
		t.Fatalf("runs diverged: %d/%d codes, %d/%d errors",
			len(first.Codes), len(second.Codes), len(first.Errors), len(second.Errors))
	}
	for i := range first.Codes {
		if first.Codes[i].Text != second.Codes[i].Text {
			t.Errorf("codes[%d] diverged: %q vs %q", i, first.Codes[i].Text, second.Codes[i].Text)
		}
	}
}

func TestEmptyBlocksContributeNothing(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 0)
	blocks := []sheetformat.Block{
		qrBlock(""),
		qrBlock("   \n  "),
		qrBlock("only"),
	}

	result, err := planner.Generate(blocks, sheetformat.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(result.Codes) != 1 {
		t.Fatalf("expected 1 code, got %d", len(result.Codes))
	}
	if result.Codes[0].BlockIndex != 2 {
		t.Errorf("BlockIndex = %d, want 2", result.Codes[0].BlockIndex)
	}
}

func TestWillDelegateThreshold(t *testing.T) {
	delegate := &fakeDelegator{}
	planner := NewPlanner(DefaultEncoder(), delegate, 50)

	under := []sheetformat.Block{qrBlock(manyLines(49))}
	if total, delegated := planner.WillDelegate(under, sheetformat.DefaultSettings()); delegated || total != 49 {
		t.Errorf("49 items: total=%d delegated=%v, want 49/false", total, delegated)
	}

	at := []sheetformat.Block{qrBlock(manyLines(50))}
	if total, delegated := planner.WillDelegate(at, sheetformat.DefaultSettings()); !delegated || total != 50 {
		t.Errorf("50 items: total=%d delegated=%v, want 50/true", total, delegated)
	}
}

func TestNilDelegateNeverDelegates(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 50)
	blocks := []sheetformat.Block{qrBlock(manyLines(200))}

	if _, delegated := planner.WillDelegate(blocks, sheetformat.DefaultSettings()); delegated {
		t.Error("nil delegate must force the direct path")
	}

	result, err := planner.Generate(blocks, sheetformat.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(result.Codes) != 200 {
		t.Errorf("expected 200 codes, got %d", len(result.Codes))
	}
}

func TestGenerateDelegatedPath(t *testing.T) {
	delegate := &fakeDelegator{}
	planner := NewPlanner(DefaultEncoder(), delegate, 50)
	blocks := []sheetformat.Block{qrBlock(manyLines(60))}

	var last Progress
	result, err := planner.Generate(blocks, sheetformat.DefaultSettings(), func(p Progress) {
		last = p
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !delegate.called {
		t.Error("expected the run to be delegated")
	}
	if len(result.Codes) != 60 {
		t.Errorf("expected 60 codes, got %d", len(result.Codes))
	}
	if last.Total != 60 || last.Current != 60 {
		t.Errorf("final progress = %+v, want 60/60", last)
	}
}

func TestGenerateDelegationFailure(t *testing.T) {
	delegate := &fakeDelegator{fail: errors.New("executor is shut down")}
	planner := NewPlanner(DefaultEncoder(), delegate, 50)
	blocks := []sheetformat.Block{qrBlock(manyLines(75))}

	_, err := planner.Generate(blocks, sheetformat.DefaultSettings(), nil)
	if err == nil {
		t.Fatal("expected an error from a failed delegation")
	}
	if !strings.Contains(err.Error(), string(ErrDelegationFailed)) {
		t.Errorf("error %q should carry the %s kind", err, ErrDelegationFailed)
	}
}

func TestSizeOverrideWins(t *testing.T) {
	planner := NewPlanner(DefaultEncoder(), nil, 0)

	b := qrBlock("short")
	b.SizeOverride = sheetformat.SizeLarge

	result, err := planner.Generate([]sheetformat.Block{b}, sheetformat.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(result.Codes) != 1 {
		t.Fatalf("expected 1 code, got %d", len(result.Codes))
	}
	if result.Codes[0].ResolvedSize != sheetformat.SizeLarge {
		t.Errorf("ResolvedSize = %s, want large", result.Codes[0].ResolvedSize)
	}
}

func TestAutoSizeClassification(t *testing.T) {
	if got := ClassifyBarcodeSize("1234567890123456"); got != sheetformat.SizeSmall {
		t.Errorf("16 chars = %s, want small", got)
	}
	if got := ClassifyBarcodeSize("12345678901234567"); got != sheetformat.SizeMedium {
		t.Errorf("17 chars = %s, want medium", got)
	}
	if got := ClassifyQRSize(33); got != sheetformat.SizeSmall {
		t.Errorf("33 modules = %s, want small", got)
	}
	if got := ClassifyQRSize(34); got != sheetformat.SizeMedium {
		t.Errorf("34 modules = %s, want medium", got)
	}
}

func manyLines(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "item-%03d\n", i)
	}
	return sb.String()
}
