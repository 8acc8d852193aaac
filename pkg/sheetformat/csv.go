package sheetformat

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Column-oriented CSV layout: one attribute row per block field, then one
// row per content line across all blocks. Shorter blocks are padded with
// empty cells; the first cell reads "Content" on the first content row only.
const (
	cellSubtitle        = "Subtitle"
	cellCodeType        = "CodeType"
	cellErrorCorrection = "QRErrorCorrection"
	cellBarcodeFormat   = "BarcodeFormat"
	cellSizeOverride    = "SizeOverride"
	cellContent         = "Content"
)

// ImportKind identifies the structure of an imported file.
type ImportKind string

const (
	ImportColumnar   ImportKind = "columnar"
	ImportLegacyRows ImportKind = "legacy-rows"
	ImportJSON       ImportKind = "json"
)

// ExportCSV serializes the document's blocks in the columnar CSV layout.
func ExportCSV(d *Document) ([]byte, error) {
	n := len(d.Blocks)
	if n == 0 {
		return nil, fmt.Errorf("document has no blocks to export")
	}

	attrRow := func(name string, value func(Block) string) []string {
		row := make([]string, n+1)
		row[0] = name
		for i, b := range d.Blocks {
			row[i+1] = value(b)
		}
		return row
	}

	rows := [][]string{
		attrRow(cellSubtitle, func(b Block) string { return b.Subtitle }),
		attrRow(cellCodeType, func(b Block) string { return string(b.CodeType) }),
		attrRow(cellErrorCorrection, func(b Block) string { return string(b.QRErrorCorrection) }),
		attrRow(cellBarcodeFormat, func(b Block) string { return string(b.BarcodeFormat) }),
		attrRow(cellSizeOverride, func(b Block) string { return string(b.SizeOverride) }),
	}

	lines := make([][]string, n)
	maxLines := 0
	for i, b := range d.Blocks {
		if b.Content != "" {
			lines[i] = strings.Split(b.Content, "\n")
		}
		if len(lines[i]) > maxLines {
			maxLines = len(lines[i])
		}
	}

	for li := 0; li < maxLines; li++ {
		row := make([]string, n+1)
		if li == 0 {
			row[0] = cellContent
		}
		for i := range d.Blocks {
			if li < len(lines[i]) {
				row[i+1] = lines[i][li]
			}
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectImportKind inspects parsed CSV records and decides which import
// path applies. Anything that is neither the legacy row layout nor the
// columnar layout is treated as JSON.
func DetectImportKind(records [][]string) ImportKind {
	if len(records) == 0 {
		return ImportJSON
	}

	hasCodeType, hasContent := false, false
	for _, cell := range records[0] {
		switch strings.TrimSpace(cell) {
		case cellCodeType:
			hasCodeType = true
		case cellContent:
			hasContent = true
		}
	}
	if hasCodeType && hasContent {
		return ImportLegacyRows
	}

	for _, row := range records {
		if len(row) > 0 && strings.TrimSpace(row[0]) == cellCodeType {
			return ImportColumnar
		}
	}

	return ImportJSON
}

// Import parses a document from raw bytes, auto-detecting columnar CSV,
// legacy row CSV, or JSON. A parse failure never yields a partial document.
func Import(data []byte) (*Document, ImportKind, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		records = nil
	}

	kind := DetectImportKind(records)
	var blocks []Block

	switch kind {
	case ImportColumnar:
		blocks, err = importColumnar(records)
	case ImportLegacyRows:
		blocks, err = importLegacyRows(records)
	default:
		doc, jerr := Parse(data)
		if jerr != nil {
			return nil, ImportJSON, fmt.Errorf("unrecognized file structure: %w", jerr)
		}
		return doc, ImportJSON, nil
	}
	if err != nil {
		return nil, kind, err
	}
	if len(blocks) == 0 {
		return nil, kind, fmt.Errorf("no blocks found in file")
	}

	doc := NewDocument()
	doc.Blocks = blocks
	return doc, kind, nil
}

func importColumnar(records [][]string) ([]Block, error) {
	attrs := make(map[string][]string)
	var contentRows [][]string
	inContent := false

	for _, row := range records {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if inContent || name == cellContent {
			inContent = true
			contentRows = append(contentRows, row[1:])
			continue
		}
		attrs[name] = row[1:]
	}

	types, ok := attrs[cellCodeType]
	if !ok {
		return nil, fmt.Errorf("columnar csv is missing the %s row", cellCodeType)
	}

	cell := func(name string, i int) string {
		row := attrs[name]
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	blocks := make([]Block, 0, len(types))
	for i := range types {
		b := NewBlock()
		b.Subtitle = cell(cellSubtitle, i)
		b.CodeType = normalizeCodeType(cell(cellCodeType, i))
		if ec := cell(cellErrorCorrection, i); ec != "" {
			b.QRErrorCorrection = ErrorCorrection(ec)
		}
		if f := cell(cellBarcodeFormat, i); f != "" {
			b.BarcodeFormat = BarcodeFormat(strings.ToUpper(f))
		}
		if s := cell(cellSizeOverride, i); s != "" {
			b.SizeOverride = SizeClass(strings.ToLower(s))
		}

		var lines []string
		for _, row := range contentRows {
			if i < len(row) {
				lines = append(lines, row[i])
			} else {
				lines = append(lines, "")
			}
		}
		b.Content = strings.TrimRight(strings.Join(lines, "\n"), "\n")

		if err := validateBlock(&b); err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		blocks = append(blocks, b)
	}

	return blocks, nil
}

// importLegacyRows reads the old row-per-block layout:
// subtitle, codeType, content[, qrErrorCorrection[, barcodeFormat[, sizeOverride]]].
// Rows with fewer than three cells are skipped.
func importLegacyRows(records [][]string) ([]Block, error) {
	var blocks []Block
	for idx, row := range records {
		if idx == 0 {
			// Header row, identified during detection.
			continue
		}
		if len(row) < 3 {
			continue
		}

		b := NewBlock()
		b.Subtitle = strings.TrimSpace(row[0])
		b.CodeType = normalizeCodeType(row[1])
		b.Content = row[2]
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			b.QRErrorCorrection = ErrorCorrection(strings.TrimSpace(row[3]))
		}
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			b.BarcodeFormat = BarcodeFormat(strings.ToUpper(strings.TrimSpace(row[4])))
		}
		if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
			b.SizeOverride = SizeClass(strings.ToLower(strings.TrimSpace(row[5])))
		}

		if err := validateBlock(&b); err != nil {
			return nil, fmt.Errorf("row %d: %w", idx+1, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
