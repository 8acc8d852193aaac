package sheetformat

import "fmt"

// Validate validates a Document structure
func Validate(d *Document) error {
	if d.Version == "" {
		return fmt.Errorf("version is required")
	}
	if d.Version != Version {
		return fmt.Errorf("unsupported version: %s (expected %s)", d.Version, Version)
	}

	if err := validateSettings(&d.Settings); err != nil {
		return err
	}

	if len(d.Blocks) == 0 {
		return fmt.Errorf("at least one block is required")
	}

	seen := make(map[string]bool)
	for i, b := range d.Blocks {
		if err := validateBlock(&b); err != nil {
			return fmt.Errorf("block[%d]: %w", i, err)
		}
		if seen[b.ID] {
			return fmt.Errorf("block[%d]: duplicate id '%s'", i, b.ID)
		}
		seen[b.ID] = true
	}

	return nil
}

// ValidateSettings checks a settings value on its own, for callers
// accepting settings updates.
func ValidateSettings(s GlobalSettings) error {
	return validateSettings(&s)
}

// ValidateBlock checks a single block on its own.
func ValidateBlock(b Block) error {
	return validateBlock(&b)
}

func validateSettings(s *GlobalSettings) error {
	switch s.Delimiter {
	case DelimiterNewline, DelimiterComma, DelimiterSemicolon, DelimiterTab, DelimiterCustom:
	default:
		return fmt.Errorf("invalid delimiter '%s' (must be newline, comma, semicolon, tab, or custom)", s.Delimiter)
	}

	if s.PaperSize != "" {
		validSizes := []string{"A4", "Letter", "A5"}
		valid := false
		for _, p := range validSizes {
			if s.PaperSize == p {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid paperSize '%s' (must be A4, Letter, or A5)", s.PaperSize)
		}
	}

	if s.Orientation != "" && s.Orientation != "portrait" && s.Orientation != "landscape" {
		return fmt.Errorf("invalid orientation '%s' (must be portrait or landscape)", s.Orientation)
	}

	return nil
}

func validateBlock(b *Block) error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}

	switch b.CodeType {
	case CodeTypeQR, CodeTypeBarcode:
	default:
		return fmt.Errorf("invalid codeType '%s' (must be qr or barcode)", b.CodeType)
	}

	switch b.QRErrorCorrection {
	case ErrorCorrectionL, ErrorCorrectionM, ErrorCorrectionQ, ErrorCorrectionH:
	default:
		return fmt.Errorf("invalid qrErrorCorrection '%s' (must be L, M, Q, or H)", b.QRErrorCorrection)
	}

	switch b.BarcodeFormat {
	case FormatCODE128, FormatEAN13, FormatJAN, FormatCODE39, FormatITF:
	default:
		return fmt.Errorf("invalid barcodeFormat '%s'", b.BarcodeFormat)
	}

	switch b.SizeOverride {
	case SizeAuto, SizeSmall, SizeMedium, SizeLarge:
	default:
		return fmt.Errorf("invalid sizeOverride '%s' (must be auto, small, medium, or large)", b.SizeOverride)
	}

	return nil
}
