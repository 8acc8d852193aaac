package generator

import (
	"fmt"
	"strings"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

const code39Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-. $/+%"

// ValidateContent checks whether text is legal for the target barcode
// symbology. QR content is never validated; this applies to barcodes only.
// A nil return means valid.
func ValidateContent(text string, format sheetformat.BarcodeFormat) error {
	switch format {
	case sheetformat.FormatCODE128:
		for _, r := range text {
			if r < 0x20 || r > 0x7E {
				return fmt.Errorf("CODE128 only supports printable ASCII characters")
			}
		}
		return nil

	case sheetformat.FormatEAN13, sheetformat.FormatJAN:
		if !digitsOnly(text) {
			return fmt.Errorf("%s requires digits only", format)
		}
		if len(text) != 12 && len(text) != 13 {
			return fmt.Errorf("%s requires exactly 12 or 13 digits, got %d", format, len(text))
		}
		return nil

	case sheetformat.FormatCODE39:
		for _, r := range strings.ToUpper(text) {
			if !strings.ContainsRune(code39Charset, r) {
				return fmt.Errorf("CODE39 does not support character %q", r)
			}
		}
		return nil

	case sheetformat.FormatITF:
		if !digitsOnly(text) {
			return fmt.Errorf("ITF requires digits only")
		}
		if len(text)%2 != 0 {
			return fmt.Errorf("ITF requires an even number of digits, got %d", len(text))
		}
		return nil

	default:
		return fmt.Errorf("unrecognized barcode format '%s'", format)
	}
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
