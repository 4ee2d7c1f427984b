// Package signature captures freehand strokes and exports them as SVG.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
)

// ErrEmptySignature is returned when exporting a pad with no strokes.
var ErrEmptySignature = errors.New("no signature drawn")

// Point is a pointer sample in pad coordinates, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous pen-down sequence.
type Stroke []Point

// Asset is an exported signature. Markup is SVG whose viewBox spans the pad;
// Width and Height are the display size requested at export.
type Asset struct {
	Markup []byte  `json:"-"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectRatio returns height over width of the display size.
func (a Asset) AspectRatio() float64 {
	if a.Width <= 0 {
		return 0
	}
	return a.Height / a.Width
}

// Brush configures stroke rendering.
type Brush struct {
	Width float64
	Color color.Color
}

// DefaultBrush is a 2 unit black pen.
func DefaultBrush() Brush {
	return Brush{Width: 2, Color: canvas.Black}
}

// Pad records strokes on a fixed-size drawing surface.
type Pad struct {
	width, height float64
	brush         Brush

	mu      sync.Mutex
	strokes []Stroke
}

// NewPad creates an empty pad of the given size.
func NewPad(width, height float64, brush Brush) (*Pad, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid pad size %gx%g", width, height)
	}
	if brush.Width <= 0 {
		brush.Width = DefaultBrush().Width
	}
	if brush.Color == nil {
		brush.Color = DefaultBrush().Color
	}
	return &Pad{width: width, height: height, brush: brush}, nil
}

// Size returns the pad dimensions.
func (p *Pad) Size() (float64, float64) {
	return p.width, p.height
}

// AddStroke records a stroke. Empty strokes are ignored.
func (p *Pad) AddStroke(s Stroke) {
	if len(s) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strokes = append(p.strokes, append(Stroke(nil), s...))
}

// Clear removes every stroke.
func (p *Pad) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strokes = nil
}

// HasStrokes reports whether anything has been drawn.
func (p *Pad) HasStrokes() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.strokes) > 0
}

// StrokeCount returns the number of recorded strokes.
func (p *Pad) StrokeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.strokes)
}

// ExportVector renders the strokes to SVG. The drawing keeps the pad as its
// coordinate system and is displayed at targetWidth x targetHeight.
func (p *Pad) ExportVector(targetWidth, targetHeight float64) (Asset, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return Asset{}, fmt.Errorf("invalid export size %gx%g", targetWidth, targetHeight)
	}

	p.mu.Lock()
	strokes := make([]Stroke, len(p.strokes))
	copy(strokes, p.strokes)
	p.mu.Unlock()

	if len(strokes) == 0 {
		return Asset{}, ErrEmptySignature
	}

	c := canvas.New(p.width, p.height)
	ctx := canvas.NewContext(c)
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(p.brush.Color)
	ctx.SetStrokeWidth(p.brush.Width)
	ctx.SetStrokeCapper(canvas.RoundCap)
	ctx.SetStrokeJoiner(canvas.RoundJoin)

	for _, s := range strokes {
		ctx.DrawPath(0, 0, p.strokePath(s))
	}

	var buf bytes.Buffer
	if err := c.Write(&buf, renderers.SVG()); err != nil {
		return Asset{}, fmt.Errorf("export signature: %w", err)
	}
	markup, err := resizeRoot(buf.Bytes(), targetWidth, targetHeight)
	if err != nil {
		return Asset{}, fmt.Errorf("export signature: %w", err)
	}
	return Asset{Markup: markup, Width: targetWidth, Height: targetHeight}, nil
}

// resizeRoot replaces the width and height of the root <svg> element, which
// the renderer writes as the canvas size, with the display size. The viewBox
// is left alone.
func resizeRoot(markup []byte, width, height float64) ([]byte, error) {
	end := bytes.IndexByte(markup, '>')
	if end < 0 {
		return nil, errors.New("unterminated svg root")
	}
	root := markup[:end]
	start := bytes.Index(root, []byte(` width="`))
	viewBox := bytes.Index(root, []byte(` viewBox="`))
	if start < 0 || viewBox < start {
		return nil, errors.New("unexpected svg root attributes")
	}

	out := make([]byte, 0, len(markup))
	out = append(out, markup[:start]...)
	out = fmt.Appendf(out, ` width="%s" height="%s"`,
		strconv.FormatFloat(width, 'f', -1, 64),
		strconv.FormatFloat(height, 'f', -1, 64))
	out = append(out, markup[viewBox:]...)
	return out, nil
}

// strokePath converts pad coordinates (y down) to canvas coordinates (y up).
func (p *Pad) strokePath(s Stroke) *canvas.Path {
	path := &canvas.Path{}
	path.MoveTo(s[0].X, p.height-s[0].Y)
	if len(s) == 1 {
		// A tap still leaves a dot.
		path.LineTo(s[0].X+0.01, p.height-s[0].Y)
		return path
	}
	for _, pt := range s[1:] {
		path.LineTo(pt.X, p.height-pt.Y)
	}
	return path
}
