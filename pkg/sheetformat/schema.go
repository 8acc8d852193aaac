// Package sheetformat defines the types for the .codesheet document format
package sheetformat

import (
	"time"

	"github.com/google/uuid"
)

// Version is the current document format version.
const Version = "2.0"

// CodeType selects which kind of code a block produces.
type CodeType string

const (
	CodeTypeQR      CodeType = "qr"
	CodeTypeBarcode CodeType = "barcode"
)

// ErrorCorrection is a QR error-correction level.
type ErrorCorrection string

const (
	ErrorCorrectionL ErrorCorrection = "L"
	ErrorCorrectionM ErrorCorrection = "M"
	ErrorCorrectionQ ErrorCorrection = "Q"
	ErrorCorrectionH ErrorCorrection = "H"
)

// BarcodeFormat is a barcode symbology.
type BarcodeFormat string

const (
	FormatCODE128 BarcodeFormat = "CODE128"
	FormatEAN13   BarcodeFormat = "EAN13"
	FormatJAN     BarcodeFormat = "JAN"
	FormatCODE39  BarcodeFormat = "CODE39"
	FormatITF     BarcodeFormat = "ITF"
)

// SizeClass controls how large a code is drawn on the sheet.
type SizeClass string

const (
	SizeAuto   SizeClass = "auto"
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// DelimiterKind selects how block content is split into items.
type DelimiterKind string

const (
	DelimiterNewline   DelimiterKind = "newline"
	DelimiterComma     DelimiterKind = "comma"
	DelimiterSemicolon DelimiterKind = "semicolon"
	DelimiterTab       DelimiterKind = "tab"
	DelimiterCustom    DelimiterKind = "custom"
)

// Block is one labeled unit of input text plus its own code settings.
// Content holds raw multi-item text; it is split by the active delimiter
// at generation time.
type Block struct {
	ID                string          `json:"id"`
	Subtitle          string          `json:"subtitle,omitempty"`
	CodeType          CodeType        `json:"codeType"`
	QRErrorCorrection ErrorCorrection `json:"qrErrorCorrection"`
	BarcodeFormat     BarcodeFormat   `json:"barcodeFormat"`
	SizeOverride      SizeClass       `json:"sizeOverride"`
	Content           string          `json:"content"`
}

// GlobalSettings is the document-wide formatting configuration.
// CustomDelimiter is honored only when Delimiter is "custom".
type GlobalSettings struct {
	PrintTitle      string        `json:"printTitle,omitempty"`
	Delimiter       DelimiterKind `json:"delimiter"`
	CustomDelimiter string        `json:"customDelimiter,omitempty"`
	PaperSize       string        `json:"paperSize"`   // "A4", "Letter", "A5"
	Orientation     string        `json:"orientation"` // "portrait", "landscape"
}

// Document is the root structure of a .codesheet file and of the
// persistence record written by the autosave cache.
type Document struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
	SavedAt   time.Time      `json:"savedAt,omitempty"`
	Settings  GlobalSettings `json:"globalSettings"`
	Blocks    []Block        `json:"blocks"`
}

// NewBlock returns a block with a fresh id and default code settings.
func NewBlock() Block {
	return Block{
		ID:                uuid.New().String(),
		CodeType:          CodeTypeQR,
		QRErrorCorrection: ErrorCorrectionM,
		BarcodeFormat:     FormatCODE128,
		SizeOverride:      SizeAuto,
	}
}

// DefaultSettings returns the settings a fresh document starts with.
func DefaultSettings() GlobalSettings {
	return GlobalSettings{
		Delimiter:   DelimiterNewline,
		PaperSize:   "A4",
		Orientation: "portrait",
	}
}

// NewDocument returns a single-block document with default settings.
func NewDocument() *Document {
	return &Document{
		Version:   Version,
		CreatedAt: time.Now(),
		Settings:  DefaultSettings(),
		Blocks:    []Block{NewBlock()},
	}
}

// CloneBlocks returns a deep copy of the block slice.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	dup := make([]Block, len(blocks))
	copy(dup, blocks)
	return dup
}
