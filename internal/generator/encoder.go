package generator

import (
	"fmt"
	"image"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/twooffive"
	"github.com/skip2/go-qrcode"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// ErrorKind classifies a per-item or per-run failure.
type ErrorKind string

const (
	ErrValidationFailed ErrorKind = "validation_failed"
	ErrGenerationFailed ErrorKind = "generation_failed"
	ErrDelegationFailed ErrorKind = "delegation_failed"
)

// EncodeFailure is a tagged per-item failure. It is collected into the run's
// error set, never propagated past the batch boundary.
type EncodeFailure struct {
	Kind    ErrorKind
	Message string
}

func (f *EncodeFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// QRResult is a rendered QR picture plus its intrinsic module count.
type QRResult struct {
	Picture image.Image
	Modules int
}

// QRCapability draws a QR code at an error-correction level.
type QRCapability interface {
	Encode(text string, level sheetformat.ErrorCorrection) (QRResult, error)
}

// BarcodeCapability draws a barcode in a symbology.
type BarcodeCapability interface {
	Encode(text string, format sheetformat.BarcodeFormat) (image.Image, error)
}

// Base render dimensions. The sheet renderer rescales into layout cells.
const (
	qrBasePixels      = 256
	barcodeBaseWidth  = 400
	barcodeBaseHeight = 120
)

// Encoder wraps the two drawing capabilities behind one contract. A nil
// capability degrades to a generation_failed result instead of a crash.
type Encoder struct {
	qr  QRCapability
	bar BarcodeCapability
}

// NewEncoder builds an encoder from explicit capabilities.
func NewEncoder(qr QRCapability, bar BarcodeCapability) *Encoder {
	return &Encoder{qr: qr, bar: bar}
}

// DefaultEncoder builds an encoder backed by the go-qrcode and boombuler
// barcode libraries.
func DefaultEncoder() *Encoder {
	return NewEncoder(qrLibrary{}, barcodeLibrary{})
}

// EncodeQR draws text as a QR code. QR content is never validated.
func (e *Encoder) EncodeQR(text string, level sheetformat.ErrorCorrection) (image.Image, int, *EncodeFailure) {
	if e.qr == nil {
		return nil, 0, &EncodeFailure{Kind: ErrGenerationFailed, Message: "QR drawing capability is unavailable"}
	}
	res, err := e.qr.Encode(text, level)
	if err != nil {
		return nil, 0, &EncodeFailure{Kind: ErrGenerationFailed, Message: err.Error()}
	}
	return res.Picture, res.Modules, nil
}

// EncodeBarcode validates text for the symbology, then draws it. Validation
// failures short-circuit without touching the drawing capability.
func (e *Encoder) EncodeBarcode(text string, format sheetformat.BarcodeFormat) (image.Image, *EncodeFailure) {
	if err := ValidateContent(text, format); err != nil {
		return nil, &EncodeFailure{Kind: ErrValidationFailed, Message: err.Error()}
	}
	if e.bar == nil {
		return nil, &EncodeFailure{Kind: ErrGenerationFailed, Message: "barcode drawing capability is unavailable"}
	}
	img, err := e.bar.Encode(text, format)
	if err != nil {
		return nil, &EncodeFailure{Kind: ErrGenerationFailed, Message: err.Error()}
	}
	return img, nil
}

// ClassifyQRSize maps a QR's intrinsic module count to an auto size class.
// The classifier never produces "large"; that is a manual override only.
func ClassifyQRSize(modules int) sheetformat.SizeClass {
	if modules <= 33 {
		return sheetformat.SizeSmall
	}
	return sheetformat.SizeMedium
}

// ClassifyBarcodeSize maps barcode text length to an auto size class.
func ClassifyBarcodeSize(text string) sheetformat.SizeClass {
	if len(text) <= 16 {
		return sheetformat.SizeSmall
	}
	return sheetformat.SizeMedium
}

// qrLibrary backs QRCapability with github.com/skip2/go-qrcode.
type qrLibrary struct{}

func (qrLibrary) Encode(text string, level sheetformat.ErrorCorrection) (QRResult, error) {
	recovery := qrcode.Medium
	switch level {
	case sheetformat.ErrorCorrectionL:
		recovery = qrcode.Low
	case sheetformat.ErrorCorrectionM:
		recovery = qrcode.Medium
	case sheetformat.ErrorCorrectionQ:
		recovery = qrcode.High
	case sheetformat.ErrorCorrectionH:
		recovery = qrcode.Highest
	}

	qr, err := qrcode.New(text, recovery)
	if err != nil {
		return QRResult{}, err
	}
	qr.DisableBorder = true

	return QRResult{
		Picture: qr.Image(qrBasePixels),
		Modules: len(qr.Bitmap()),
	}, nil
}

// barcodeLibrary backs BarcodeCapability with github.com/boombuler/barcode.
type barcodeLibrary struct{}

func (barcodeLibrary) Encode(text string, format sheetformat.BarcodeFormat) (image.Image, error) {
	var bc barcode.Barcode
	var err error

	switch format {
	case sheetformat.FormatCODE128:
		bc, err = code128.Encode(text)
	case sheetformat.FormatEAN13, sheetformat.FormatJAN:
		bc, err = ean.Encode(text)
	case sheetformat.FormatCODE39:
		bc, err = code39.Encode(strings.ToUpper(text), false, false)
	case sheetformat.FormatITF:
		bc, err = twooffive.Encode(text, true)
	default:
		return nil, fmt.Errorf("unsupported barcode format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	return barcode.Scale(bc, barcodeBaseWidth, barcodeBaseHeight)
}
