package generator

import (
	"fmt"
	"image"
	"strings"

	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

// ProgressThreshold is the item count at or above which a run is delegated
// to the background executor.
const ProgressThreshold = 50

// EncodeRequest is one item to encode, derived fresh each run. Never persisted.
type EncodeRequest struct {
	BlockID           string
	BlockIndex        int
	ItemIndex         int // 1-based within its block
	Text              string
	CodeType          sheetformat.CodeType
	QRErrorCorrection sheetformat.ErrorCorrection
	BarcodeFormat     sheetformat.BarcodeFormat
	SizeOverride      sheetformat.SizeClass
}

// GeneratedCode is one successfully drawn code.
type GeneratedCode struct {
	BlockID      string
	BlockIndex   int
	Index        int // the item's 1-based position within its block
	Text         string
	CodeType     sheetformat.CodeType
	Picture      image.Image
	ResolvedSize sheetformat.SizeClass
	Subtitle     string
}

// ValidationError is one per-item failure.
type ValidationError struct {
	BlockID    string
	LineNumber int
	Text       string
	Kind       ErrorKind
	Message    string
}

// Result is the outcome of one generation run: successes and failures in
// block-then-item traversal order.
type Result struct {
	Codes  []GeneratedCode
	Errors []ValidationError
}

// Progress reports how far item enumeration has advanced.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ExpandRequest asks a delegate to enumerate items off the calling flow.
// Blocks and settings are value copies; the delegate owns no shared state.
type ExpandRequest struct {
	Blocks     []sheetformat.Block
	Settings   sheetformat.GlobalSettings
	OnProgress func(Progress)
}

// ExpandOutcome is the delegate's single terminal message for a run.
type ExpandOutcome struct {
	Requests []EncodeRequest
	Err      error
}

// Delegator performs the expansion step concurrently. Implementations send
// exactly one ExpandOutcome on the returned channel.
type Delegator interface {
	Expand(req ExpandRequest) <-chan ExpandOutcome
}

// CountItems computes the total item count across all blocks, resolving the
// delimiter once. Blocks whose trimmed content is empty contribute nothing.
func CountItems(blocks []sheetformat.Block, settings sheetformat.GlobalSettings) int {
	delimiter := ResolveDelimiter(settings)
	total := 0
	for _, b := range blocks {
		total += len(splitBlock(b, delimiter))
	}
	return total
}

// Expand walks blocks in order and emits one flat request per item.
func Expand(blocks []sheetformat.Block, settings sheetformat.GlobalSettings) []EncodeRequest {
	delimiter := ResolveDelimiter(settings)
	var requests []EncodeRequest
	for bi, b := range blocks {
		for ii, text := range splitBlock(b, delimiter) {
			requests = append(requests, EncodeRequest{
				BlockID:           b.ID,
				BlockIndex:        bi,
				ItemIndex:         ii + 1,
				Text:              text,
				CodeType:          b.CodeType,
				QRErrorCorrection: b.QRErrorCorrection,
				BarcodeFormat:     b.BarcodeFormat,
				SizeOverride:      b.SizeOverride,
			})
		}
	}
	return requests
}

func splitBlock(b sheetformat.Block, delimiter string) []string {
	if strings.TrimSpace(b.Content) == "" {
		return nil
	}
	return Split(b.Content, delimiter)
}

// Planner turns blocks plus settings into a result set, choosing between
// the direct path and delegation by item count.
type Planner struct {
	enc       *Encoder
	delegate  Delegator
	threshold int
}

// NewPlanner builds a planner. A nil delegate forces the direct path
// regardless of item count.
func NewPlanner(enc *Encoder, delegate Delegator, threshold int) *Planner {
	if threshold <= 0 {
		threshold = ProgressThreshold
	}
	return &Planner{enc: enc, delegate: delegate, threshold: threshold}
}

// WillDelegate reports whether a run over the given inputs would be handed
// to the background executor.
func (p *Planner) WillDelegate(blocks []sheetformat.Block, settings sheetformat.GlobalSettings) (total int, delegated bool) {
	total = CountItems(blocks, settings)
	return total, p.delegate != nil && total >= p.threshold
}

// Generate runs one full generation pass. Delegated runs block until the
// executor's terminal message; callers wanting an unblocked flow invoke
// Generate from a goroutine. onProgress may be nil and fires only on
// delegated runs. A non-nil error means the whole run failed
// (delegation_failed); per-item failures land in the Result instead.
func (p *Planner) Generate(blocks []sheetformat.Block, settings sheetformat.GlobalSettings, onProgress func(Progress)) (*Result, error) {
	var requests []EncodeRequest

	if _, delegated := p.WillDelegate(blocks, settings); delegated {
		outcome := <-p.delegate.Expand(ExpandRequest{
			Blocks:     sheetformat.CloneBlocks(blocks),
			Settings:   settings,
			OnProgress: onProgress,
		})
		if outcome.Err != nil {
			return nil, fmt.Errorf("%s: %w", ErrDelegationFailed, outcome.Err)
		}
		requests = outcome.Requests
	} else {
		requests = Expand(blocks, settings)
	}

	return p.apply(requests, blocks), nil
}

// apply runs the per-item encode logic over the flat request list. Order is
// preserved; re-running with identical inputs and deterministic capabilities
// reproduces the same codes and errors.
func (p *Planner) apply(requests []EncodeRequest, blocks []sheetformat.Block) *Result {
	res := &Result{}
	for _, req := range requests {
		subtitle := ""
		if req.BlockIndex < len(blocks) {
			subtitle = blocks[req.BlockIndex].Subtitle
		}

		switch req.CodeType {
		case sheetformat.CodeTypeBarcode:
			img, fail := p.enc.EncodeBarcode(req.Text, req.BarcodeFormat)
			if fail != nil {
				res.Errors = append(res.Errors, ValidationError{
					BlockID:    req.BlockID,
					LineNumber: req.ItemIndex,
					Text:       req.Text,
					Kind:       fail.Kind,
					Message:    fail.Message,
				})
				continue
			}
			res.Codes = append(res.Codes, GeneratedCode{
				BlockID:      req.BlockID,
				BlockIndex:   req.BlockIndex,
				Index:        req.ItemIndex,
				Text:         req.Text,
				CodeType:     req.CodeType,
				Picture:      img,
				ResolvedSize: resolveSize(req.SizeOverride, ClassifyBarcodeSize(req.Text)),
				Subtitle:     subtitle,
			})

		default: // QR
			img, modules, fail := p.enc.EncodeQR(req.Text, req.QRErrorCorrection)
			if fail != nil {
				res.Errors = append(res.Errors, ValidationError{
					BlockID:    req.BlockID,
					LineNumber: req.ItemIndex,
					Text:       req.Text,
					Kind:       ErrGenerationFailed,
					Message:    fail.Message,
				})
				continue
			}
			res.Codes = append(res.Codes, GeneratedCode{
				BlockID:      req.BlockID,
				BlockIndex:   req.BlockIndex,
				Index:        req.ItemIndex,
				Text:         req.Text,
				CodeType:     req.CodeType,
				Picture:      img,
				ResolvedSize: resolveSize(req.SizeOverride, ClassifyQRSize(modules)),
				Subtitle:     subtitle,
			})
		}
	}
	return res
}

func resolveSize(override, auto sheetformat.SizeClass) sheetformat.SizeClass {
	if override == sheetformat.SizeAuto || override == "" {
		return auto
	}
	return override
}
