package placement

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"signing-portal/signing-portal-backend/internal/signature"
)

// DefaultRenderScale is the number of device pixels rendered per PDF point.
const DefaultRenderScale = 3.0

// maxRasterSide guards against pathological placements eating memory.
const maxRasterSide = 8192

// RasterizeForEmbedding renders the vector signature at the pixel size the
// placement needs. The target is sized from the placement in points times
// scale rather than from the on-screen overlay, so zooming the output PDF
// does not reveal an under-sampled image.
func RasterizeForEmbedding(asset signature.Asset, p PlacementRect, scale float64) (*image.RGBA, error) {
	if !positive(scale) {
		scale = DefaultRenderScale
	}
	w := int(math.Ceil(p.WidthPt * scale))
	h := int(math.Ceil(p.HeightPt * scale))
	if w <= 0 || h <= 0 || w > maxRasterSide || h > maxRasterSide {
		return nil, fmt.Errorf("%w: target %dx%d px", ErrRasterization, w, h)
	}
	if len(asset.Markup) == 0 {
		return nil, fmt.Errorf("%w: empty markup", ErrRasterization)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(asset.Markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterization, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("%w: markup has no usable viewBox", ErrRasterization)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}
