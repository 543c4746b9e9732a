// Package export renders the canvas history to PDF.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/shared-sketch/backend/internal/model"
)

// A4 landscape, in millimetres.
const (
	pageWidth  = 297.0
	pageHeight = 210.0
	lineWidth  = 0.5
)

// WritePDF draws strokes on a single black A4 landscape page, scaled to fit
// inside margin millimetres on every side, and writes the document to w.
func WritePDF(w io.Writer, strokes []model.Stroke, margin float64) error {
	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle("Shared sketch", true)
	p.AddPage()

	p.SetFillColor(0, 0, 0)
	p.Rect(0, 0, pageWidth, pageHeight, "F")

	p.SetLineWidth(lineWidth)
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	fit := fitBounds(strokes, margin)
	for _, s := range strokes {
		p.SetDrawColor(s.Color().RGB())
		for i := 1; i < len(s); i++ {
			x1, y1 := fit.apply(s[i-1])
			x2, y2 := fit.apply(s[i])
			p.Line(x1, y1, x2, y2)
		}
	}

	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// transform maps canvas coordinates to page millimetres.
type transform struct {
	minX, minY float64
	scale      float64
	offX, offY float64
}

func (t transform) apply(pt model.Point) (float64, float64) {
	return t.offX + (float64(pt.X)-t.minX)*t.scale,
		t.offY + (float64(pt.Y)-t.minY)*t.scale
}

// fitBounds centres the bounding box of strokes inside the page margins,
// keeping the aspect ratio.
func fitBounds(strokes []model.Stroke, margin float64) transform {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range strokes {
		for _, pt := range s {
			minX = math.Min(minX, float64(pt.X))
			minY = math.Min(minY, float64(pt.Y))
			maxX = math.Max(maxX, float64(pt.X))
			maxY = math.Max(maxY, float64(pt.Y))
		}
	}
	if math.IsInf(minX, 1) {
		return transform{scale: 1, offX: margin, offY: margin}
	}

	availW := math.Max(pageWidth-2*margin, 1)
	availH := math.Max(pageHeight-2*margin, 1)
	w, h := maxX-minX, maxY-minY

	scale := 1.0
	switch {
	case w > 0 && h > 0:
		scale = math.Min(availW/w, availH/h)
	case w > 0:
		scale = availW / w
	case h > 0:
		scale = availH / h
	}

	return transform{
		minX:  minX,
		minY:  minY,
		scale: scale,
		offX:  margin + (availW-w*scale)/2,
		offY:  margin + (availH-h*scale)/2,
	}
}
