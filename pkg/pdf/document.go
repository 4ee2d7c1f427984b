// Package pdf wraps pdfcpu with the small document surface the signing flow
// needs: page geometry, page previews, image stamping and serialization.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// pdfcpu writes a config dir under the user's home on first use otherwise.
	api.DisableConfigDir()
}

// Geometry is a page size in PDF points.
type Geometry struct {
	WidthPt  float64 `json:"width_pt"`
	HeightPt float64 `json:"height_pt"`
}

// Rect is a placement on a page in points, origin bottom-left.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ImageRef is an image encoded for embedding.
type ImageRef struct {
	data          []byte
	width, height int
}

// Size returns the pixel size of the referenced image.
func (r ImageRef) Size() (int, int) {
	return r.width, r.height
}

// Document is an in-memory PDF. Every DrawImage produces a new byte
// snapshot, so a failed draw never damages earlier ones.
type Document struct {
	data       []byte
	pages      []Geometry
	conf       *model.Configuration
	rasterizer PageRasterizer
}

// Option configures Load.
type Option func(*Document)

// WithRasterizer overrides the page preview backend.
func WithRasterizer(r PageRasterizer) Option {
	return func(d *Document) {
		d.rasterizer = r
	}
}

// Load parses and validates PDF bytes.
func Load(data []byte, opts ...Option) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrLoad)
	}

	conf := newConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page sizes: %v", ErrLoad, err)
	}

	d := &Document{
		data:       append([]byte(nil), data...),
		pages:      make([]Geometry, len(dims)),
		conf:       conf,
		rasterizer: NewFitzRasterizer(),
	}
	for i, dim := range dims {
		d.pages[i] = Geometry{WidthPt: dim.Width, HeightPt: dim.Height}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Clone returns an independent copy sharing no mutable state.
func (d *Document) Clone() *Document {
	c := *d
	c.data = append([]byte(nil), d.data...)
	c.pages = append([]Geometry(nil), d.pages...)
	c.conf = newConfiguration()
	return &c
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// PageGeometry returns the size of the page at the zero-based index.
func (d *Document) PageGeometry(index int) (Geometry, error) {
	if index < 0 || index >= len(d.pages) {
		return Geometry{}, fmt.Errorf("%w: %d of %d", ErrIndex, index, len(d.pages))
	}
	return d.pages[index], nil
}

// Pages returns all page sizes in order.
func (d *Document) Pages() []Geometry {
	return append([]Geometry(nil), d.pages...)
}

// RasterizePage renders a page preview; scale 1 is 72 dpi.
func (d *Document) RasterizePage(index int, scale float64) (image.Image, error) {
	if _, err := d.PageGeometry(index); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}
	img, err := d.rasterizer.RasterizePage(d.data, index, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrPageRender, index+1, err)
	}
	return img, nil
}

// EmbedImage encodes img as PNG so it keeps its alpha channel on the page.
func (d *Document) EmbedImage(img image.Image) (ImageRef, error) {
	b := img.Bounds()
	if b.Empty() {
		return ImageRef{}, fmt.Errorf("%w: empty image", ErrEmbed)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ImageRef{}, fmt.Errorf("%w: %v", ErrEmbed, err)
	}
	return ImageRef{data: buf.Bytes(), width: b.Dx(), height: b.Dy()}, nil
}

// DrawImage stamps ref onto a page so that its lower-left corner sits at
// (r.X, r.Y) and its width equals r.Width. The height follows the image's
// aspect ratio.
func (d *Document) DrawImage(pageIndex int, ref ImageRef, r Rect) error {
	if _, err := d.PageGeometry(pageIndex); err != nil {
		return err
	}
	if ref.width <= 0 || r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: empty placement", ErrEmbed)
	}

	desc := fmt.Sprintf("position:bl, offset:%.4f %.4f, scalefactor:%.6f abs, rotation:0, opacity:1",
		r.X, r.Y, r.Width/float64(ref.width))
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(ref.data), desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbed, err)
	}

	var out bytes.Buffer
	pages := []string{strconv.Itoa(pageIndex + 1)}
	if err := api.AddWatermarks(bytes.NewReader(d.data), &out, pages, wm, d.conf); err != nil {
		return fmt.Errorf("%w: page %d: %v", ErrEmbed, pageIndex+1, err)
	}
	d.data = out.Bytes()
	return nil
}

// Serialize returns the current document bytes after re-validating them.
func (d *Document) Serialize() ([]byte, error) {
	if err := api.Validate(bytes.NewReader(d.data), newConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}
	return append([]byte(nil), d.data...), nil
}
