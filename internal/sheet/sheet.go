// Package sheet lays generated codes out on a printable page image.
package sheet

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/pkg/sheetformat"
)

const (
	margin   = 60
	gutter   = 24
	captionH = 34
	titleH   = 64
)

// Renderer flows code cells across a fixed-width canvas, growing and
// cropping vertically the way a continuous print sheet does.
type Renderer struct {
	width  int
	height int
	ctx    *gg.Context
	y      float64
}

// New creates a renderer sized for the paper selection.
func New(settings sheetformat.GlobalSettings) *Renderer {
	width, _ := paperPixels(settings.PaperSize, settings.Orientation)

	initialHeight := 1200
	ctx := gg.NewContext(width, initialHeight)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)
	ctx.SetFontFace(basicfont.Face7x13)

	return &Renderer{
		width:  width,
		height: initialHeight,
		ctx:    ctx,
		y:      margin,
	}
}

// Render draws the print title followed by every code cell in order.
func (r *Renderer) Render(settings sheetformat.GlobalSettings, codes []generator.GeneratedCode) (image.Image, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no codes to lay out")
	}

	if settings.PrintTitle != "" {
		r.renderTitle(settings.PrintTitle)
	}

	x := margin
	rowHeight := 0
	for _, code := range codes {
		side := cellPixels(code.ResolvedSize)
		cellW := side
		cellH := side + captionH

		if x+cellW > r.width-margin && x > margin {
			r.y += float64(rowHeight + gutter)
			x = margin
			rowHeight = 0
		}

		r.ensureHeight(cellH + margin)
		r.renderCell(code, x, int(r.y), side)

		x += cellW + gutter
		if cellH > rowHeight {
			rowHeight = cellH
		}
	}
	r.y += float64(rowHeight)

	return r.cropToContent(), nil
}

func (r *Renderer) renderTitle(title string) {
	r.ensureHeight(titleH)
	r.ctx.DrawStringAnchored(title, float64(r.width)/2, r.y+float64(titleH)/2, 0.5, 0.5)
	r.ctx.DrawLine(margin, r.y+titleH-8, float64(r.width-margin), r.y+titleH-8)
	r.ctx.Stroke()
	r.y += titleH
}

func (r *Renderer) renderCell(code generator.GeneratedCode, x, y, side int) {
	pic := code.Picture
	if pic == nil {
		return
	}

	fitted := imaging.Fit(pic, side, side, imaging.NearestNeighbor)

	// Center the picture inside its cell
	px := x + (side-fitted.Bounds().Dx())/2
	py := y + (side-fitted.Bounds().Dy())/2
	r.ctx.DrawImage(fitted, px, py)

	caption := code.Text
	if code.Subtitle != "" {
		caption = fmt.Sprintf("%s %d", code.Subtitle, code.Index)
	}
	cx := float64(x + side/2)
	r.ctx.DrawStringAnchored(truncate(caption, side/7), cx, float64(y+side+12), 0.5, 0.5)
	if code.Subtitle != "" {
		r.ctx.DrawStringAnchored(truncate(code.Text, side/7), cx, float64(y+side+26), 0.5, 0.5)
	}
}

func (r *Renderer) ensureHeight(needed int) {
	if int(r.y)+needed <= r.height {
		return
	}
	newHeight := r.height * 2
	if newHeight < int(r.y)+needed {
		newHeight = int(r.y) + needed + 1200
	}

	newCtx := gg.NewContext(r.width, newHeight)
	newCtx.SetColor(color.White)
	newCtx.Clear()
	newCtx.DrawImage(r.ctx.Image(), 0, 0)
	newCtx.SetColor(color.Black)
	newCtx.SetFontFace(basicfont.Face7x13)

	r.ctx = newCtx
	r.height = newHeight
}

func (r *Renderer) cropToContent() image.Image {
	finalHeight := int(r.y) + margin
	if finalHeight > r.height {
		finalHeight = r.height
	}

	img := r.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, r.width, finalHeight))
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// cellPixels maps a resolved size class to the cell's square side.
func cellPixels(size sheetformat.SizeClass) int {
	switch size {
	case sheetformat.SizeSmall:
		return 96
	case sheetformat.SizeLarge:
		return 208
	default:
		return 144
	}
}

// paperPixels returns page dimensions at roughly 150 dpi.
func paperPixels(paper, orientation string) (w, h int) {
	switch paper {
	case "Letter":
		w, h = 1275, 1650
	case "A5":
		w, h = 874, 1240
	default: // A4
		w, h = 1240, 1754
	}
	if orientation == "landscape" {
		w, h = h, w
	}
	return w, h
}
