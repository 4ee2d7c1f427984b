package placement

import (
	"fmt"
	"math"
)

// ComputePlacement converts a screen-space overlay into PDF page coordinates.
//
// Position and size are taken as fractions of the container, so the result
// does not depend on the preview's zoom level. The vertical axis is flipped
// and the overlay height subtracted: the overlay is anchored top-left on
// screen, the placement bottom-left on the page.
func ComputePlacement(overlay OverlayRect, container ContainerRect, page PageGeometry) (PlacementRect, error) {
	if err := container.Validate(); err != nil {
		return PlacementRect{}, err
	}

	relX := (overlay.LeftPx - container.LeftPx) / container.WidthPx
	relY := (overlay.TopPx - container.TopPx) / container.HeightPx

	widthPt := (overlay.WidthPx / container.WidthPx) * page.WidthPt
	heightPt := (overlay.HeightPx / container.HeightPx) * page.HeightPt

	return PlacementRect{
		XPt:      relX * page.WidthPt,
		YPt:      page.HeightPt - (relY * page.HeightPt) - heightPt,
		WidthPt:  widthPt,
		HeightPt: heightPt,
	}, nil
}

// ApplyBounds enforces policy on a computed placement.
func ApplyBounds(r PlacementRect, page PageGeometry, policy BoundsPolicy) (PlacementRect, error) {
	const eps = 1e-9

	switch policy {
	case BoundsAllow:
		return r, nil
	case BoundsReject:
		if !r.Within(page, eps) {
			return r, fmt.Errorf("%w: %+v on %gx%g page", ErrOutOfBounds, r, page.WidthPt, page.HeightPt)
		}
		return r, nil
	}

	if r.Within(page, eps) {
		return r, nil
	}

	// Shrink oversized placements uniformly so the signature keeps its aspect.
	if r.WidthPt > page.WidthPt || r.HeightPt > page.HeightPt {
		f := math.Min(page.WidthPt/r.WidthPt, page.HeightPt/r.HeightPt)
		r.WidthPt *= f
		r.HeightPt *= f
	}
	r.XPt = clamp(r.XPt, 0, page.WidthPt-r.WidthPt)
	r.YPt = clamp(r.YPt, 0, page.HeightPt-r.HeightPt)
	return r, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
