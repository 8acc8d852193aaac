package generator

import (
	"testing"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

func TestEncodeQRProducesModules(t *testing.T) {
	enc := DefaultEncoder()

	img, modules, fail := enc.EncodeQR("https://example.com/item/1", sheetformat.ErrorCorrectionM)
	if fail != nil {
		t.Fatalf("EncodeQR failed: %v", fail)
	}
	if img == nil {
		t.Fatal("expected an image")
	}
	if modules < 21 {
		t.Errorf("modules = %d, expected at least 21 (version 1)", modules)
	}
}

func TestEncodeBarcodeValidationShortCircuits(t *testing.T) {
	// A nil drawing capability would crash if validation did not run first.
	enc := NewEncoder(nil, nil)

	_, fail := enc.EncodeBarcode("not-digits", sheetformat.FormatEAN13)
	if fail == nil {
		t.Fatal("expected a failure")
	}
	if fail.Kind != ErrValidationFailed {
		t.Errorf("kind = %s, want %s", fail.Kind, ErrValidationFailed)
	}
}

func TestNilCapabilitiesDegrade(t *testing.T) {
	enc := NewEncoder(nil, nil)

	_, _, qrFail := enc.EncodeQR("anything", sheetformat.ErrorCorrectionM)
	if qrFail == nil || qrFail.Kind != ErrGenerationFailed {
		t.Errorf("qr failure = %v, want %s", qrFail, ErrGenerationFailed)
	}

	_, barFail := enc.EncodeBarcode("1234", sheetformat.FormatITF)
	if barFail == nil || barFail.Kind != ErrGenerationFailed {
		t.Errorf("barcode failure = %v, want %s", barFail, ErrGenerationFailed)
	}
}

func TestEncodeBarcodeFormats(t *testing.T) {
	enc := DefaultEncoder()

	tests := []struct {
		format sheetformat.BarcodeFormat
		text   string
	}{
		{sheetformat.FormatCODE128, "Hello-123"},
		{sheetformat.FormatEAN13, "123456789012"},
		{sheetformat.FormatCODE39, "abc-123"},
		{sheetformat.FormatITF, "123456"},
	}

	for _, tt := range tests {
		img, fail := enc.EncodeBarcode(tt.text, tt.format)
		if fail != nil {
			t.Errorf("%s: encode failed: %v", tt.format, fail)
			continue
		}
		if img == nil {
			t.Errorf("%s: expected an image", tt.format)
		}
	}
}
