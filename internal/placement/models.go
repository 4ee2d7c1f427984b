package placement

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateLayout is returned when the page preview element has no area.
	ErrDegenerateLayout = errors.New("degenerate layout: container has zero size")
	// ErrOutOfBounds is returned by ApplyBounds under BoundsReject.
	ErrOutOfBounds = errors.New("placement lies outside the page")
	// ErrRasterization is returned when a signature cannot be converted to pixels.
	ErrRasterization = errors.New("signature rasterization failed")
)

// PageGeometry is a PDF page's size in points.
type PageGeometry struct {
	WidthPt  float64 `json:"width_pt"`
	HeightPt float64 `json:"height_pt"`
}

// OverlayRect is the bounding box of a signature overlay in screen pixels.
type OverlayRect struct {
	LeftPx   float64 `json:"left_px"`
	TopPx    float64 `json:"top_px"`
	WidthPx  float64 `json:"width_px"`
	HeightPx float64 `json:"height_px"`
}

// ContainerRect is the page preview element's bounding box, in the same
// coordinate space as OverlayRect.
type ContainerRect OverlayRect

// Validate fails with ErrDegenerateLayout when the container has no area,
// e.g. a collapsed or hidden preview.
func (c ContainerRect) Validate() error {
	if !positive(c.WidthPx) || !positive(c.HeightPx) {
		return fmt.Errorf("%w: %gx%g", ErrDegenerateLayout, c.WidthPx, c.HeightPx)
	}
	return nil
}

// PlacementRect is a rectangle in PDF point space with a bottom-left origin.
type PlacementRect struct {
	XPt      float64 `json:"x_pt"`
	YPt      float64 `json:"y_pt"`
	WidthPt  float64 `json:"width_pt"`
	HeightPt float64 `json:"height_pt"`
}

// Within reports whether r lies inside page, allowing eps of slack.
func (r PlacementRect) Within(page PageGeometry, eps float64) bool {
	return r.XPt >= -eps && r.YPt >= -eps &&
		r.XPt+r.WidthPt <= page.WidthPt+eps &&
		r.YPt+r.HeightPt <= page.HeightPt+eps
}

// BoundsPolicy decides what happens to placements that leave the page.
type BoundsPolicy string

const (
	BoundsAllow  BoundsPolicy = "allow"
	BoundsClamp  BoundsPolicy = "clamp"
	BoundsReject BoundsPolicy = "reject"
)

// ParseBoundsPolicy maps a config value to a policy, defaulting to BoundsClamp.
func ParseBoundsPolicy(s string) BoundsPolicy {
	switch BoundsPolicy(s) {
	case BoundsAllow, BoundsReject:
		return BoundsPolicy(s)
	default:
		return BoundsClamp
	}
}
