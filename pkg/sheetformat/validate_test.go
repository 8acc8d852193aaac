package sheetformat

import "testing"

func TestValidateAcceptsDefaultDocument(t *testing.T) {
	if err := Validate(NewDocument()); err != nil {
		t.Errorf("default document must validate: %v", err)
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	doc := NewDocument()
	dup := doc.Blocks[0]
	doc.Blocks = append(doc.Blocks, dup)

	if err := Validate(doc); err == nil {
		t.Error("expected duplicate id to fail validation")
	}
}

func TestValidateRejectsEmptyBlocks(t *testing.T) {
	doc := NewDocument()
	doc.Blocks = nil

	if err := Validate(doc); err == nil {
		t.Error("expected a document with no blocks to fail validation")
	}
}

func TestValidateBlock(t *testing.T) {
	valid := NewBlock()
	if err := ValidateBlock(valid); err != nil {
		t.Errorf("fresh block must validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Block)
	}{
		{"missing id", func(b *Block) { b.ID = "" }},
		{"bad code type", func(b *Block) { b.CodeType = "datamatrix" }},
		{"bad error correction", func(b *Block) { b.QRErrorCorrection = "X" }},
		{"bad barcode format", func(b *Block) { b.BarcodeFormat = "UPC" }},
		{"bad size override", func(b *Block) { b.SizeOverride = "huge" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBlock()
			tt.mutate(&b)
			if err := ValidateBlock(b); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateSettings(t *testing.T) {
	if err := ValidateSettings(DefaultSettings()); err != nil {
		t.Errorf("default settings must validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*GlobalSettings)
	}{
		{"bad delimiter", func(s *GlobalSettings) { s.Delimiter = "pipe" }},
		{"bad paper size", func(s *GlobalSettings) { s.PaperSize = "Legal" }},
		{"bad orientation", func(s *GlobalSettings) { s.Orientation = "sideways" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if err := ValidateSettings(s); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateOptionalSettingsFields(t *testing.T) {
	s := DefaultSettings()
	s.PaperSize = ""
	s.Orientation = ""

	if err := ValidateSettings(s); err != nil {
		t.Errorf("empty optional fields must validate: %v", err)
	}
}
