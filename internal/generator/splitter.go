// Package generator implements the batch code-generation pipeline: content
// splitting, symbology validation, QR/barcode encoding, and the planner that
// expands blocks into per-item encode requests.
package generator

import (
	"strings"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// ResolveDelimiter maps the settings' delimiter selection to the literal
// split string. A custom selection with an empty custom string falls back
// to newline.
func ResolveDelimiter(settings sheetformat.GlobalSettings) string {
	switch settings.Delimiter {
	case sheetformat.DelimiterComma:
		return ","
	case sheetformat.DelimiterSemicolon:
		return ";"
	case sheetformat.DelimiterTab:
		return "\t"
	case sheetformat.DelimiterCustom:
		if settings.CustomDelimiter != "" {
			return settings.CustomDelimiter
		}
		return "\n"
	default:
		return "\n"
	}
}

// Split splits content on the literal delimiter, trims each piece, and
// drops empty pieces, preserving order. The delimiter is never escaped: a
// literal occurrence inside an item is always a split point.
func Split(content, delimiter string) []string {
	var items []string
	for _, piece := range strings.Split(content, delimiter) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			items = append(items, piece)
		}
	}
	return items
}
