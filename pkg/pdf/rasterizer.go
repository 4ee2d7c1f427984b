package pdf

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// PageRasterizer renders one page of a PDF to pixels.
type PageRasterizer interface {
	RasterizePage(data []byte, index int, scale float64) (image.Image, error)
}

// fitzRasterizer renders pages with MuPDF.
type fitzRasterizer struct{}

func NewFitzRasterizer() PageRasterizer {
	return &fitzRasterizer{}
}

func (r *fitzRasterizer) RasterizePage(data []byte, index int, scale float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return doc.ImageDPI(index, 72*scale)
}
