package sheetformat

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parse parses a .codesheet document from a byte slice. Records written by
// older versions of the tool (version != "2.0") are upgraded in place: each
// legacy block gains a fresh id and default code settings, and the stored
// settings are merged over the current defaults.
func Parse(data []byte) (*Document, error) {
	var temp struct {
		Version   string          `json:"version"`
		CreatedAt json.RawMessage `json:"createdAt,omitempty"`
		SavedAt   json.RawMessage `json:"savedAt,omitempty"`
		Settings  json.RawMessage `json:"globalSettings"`
		Blocks    []Block         `json:"blocks"`
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	doc := Document{
		Version: temp.Version,
		Blocks:  temp.Blocks,
	}
	parseTime(temp.CreatedAt, &doc.CreatedAt)
	parseTime(temp.SavedAt, &doc.SavedAt)

	doc.Settings = DefaultSettings()
	if len(temp.Settings) > 0 {
		// Unmarshal over the defaults so missing fields keep their
		// default values.
		if err := json.Unmarshal(temp.Settings, &doc.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	if doc.Version != Version {
		migrate(&doc)
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// migrate upgrades a legacy document to the current version.
func migrate(doc *Document) {
	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		b.ID = uuid.New().String()
		b.CodeType = normalizeCodeType(string(b.CodeType))
		if b.QRErrorCorrection == "" {
			b.QRErrorCorrection = ErrorCorrectionM
		}
		if b.BarcodeFormat == "" {
			b.BarcodeFormat = FormatCODE128
		}
		if b.SizeOverride == "" {
			b.SizeOverride = SizeAuto
		}
	}
	doc.Version = Version
}

func normalizeCodeType(raw string) CodeType {
	if strings.EqualFold(strings.TrimSpace(raw), string(CodeTypeBarcode)) {
		return CodeTypeBarcode
	}
	return CodeTypeQR
}

// parseTime accepts both RFC3339 strings and legacy epoch-millisecond
// numbers. Unparseable values are left as the zero time.
func parseTime(raw json.RawMessage, dst *time.Time) {
	if len(raw) == 0 {
		return
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err == nil {
		*dst = t
		return
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		*dst = time.UnixMilli(ms)
	}
}

// ParseFile parses a .codesheet document from disk
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	return Parse(data)
}

// ToJSON converts a Document to JSON bytes
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// SaveToFile saves a Document to a file
func (d *Document) SaveToFile(path string) error {
	data, err := d.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
