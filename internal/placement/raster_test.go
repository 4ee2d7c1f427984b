package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signing-portal/signing-portal-backend/internal/signature"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">
<rect x="0" y="0" width="100" height="50" fill="#000000"/>
</svg>`

func TestRasterizeForEmbeddingSizesFromPoints(t *testing.T) {
	asset := signature.Asset{Markup: []byte(squareSVG), Width: 150, Height: 75}
	p := PlacementRect{XPt: 0, YPt: 0, WidthPt: 100.2, HeightPt: 50}

	img, err := RasterizeForEmbedding(asset, p, 2)
	require.NoError(t, err)
	assert.Equal(t, 201, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	_, _, _, a := img.At(100, 50).RGBA()
	assert.NotZero(t, a)
}

func TestRasterizeForEmbeddingDefaultScale(t *testing.T) {
	asset := signature.Asset{Markup: []byte(squareSVG)}
	img, err := RasterizeForEmbedding(asset, PlacementRect{WidthPt: 10, HeightPt: 5}, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 15, img.Bounds().Dy())
}

func TestRasterizeForEmbeddingFailures(t *testing.T) {
	good := PlacementRect{WidthPt: 10, HeightPt: 5}
	cases := map[string]struct {
		markup string
		p      PlacementRect
	}{
		"empty markup":  {"", good},
		"malformed xml": {`<svg viewBox="0 0 10 10"><path d="M0 0`, good},
		"no viewBox":    {`<svg xmlns="http://www.w3.org/2000/svg"></svg>`, good},
		"zero target":   {squareSVG, PlacementRect{WidthPt: 0, HeightPt: 5}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RasterizeForEmbedding(signature.Asset{Markup: []byte(tc.markup)}, tc.p, 1)
			assert.ErrorIs(t, err, ErrRasterization)
		})
	}
}

func TestRasterizeForEmbeddingDrawsPadStrokes(t *testing.T) {
	pad, err := signature.NewPad(400, 200, signature.Brush{Width: 4})
	require.NoError(t, err)
	// Top-left quarter of the pad only.
	pad.AddStroke(signature.Stroke{{X: 20, Y: 20}, {X: 100, Y: 80}, {X: 180, Y: 30}})

	asset, err := pad.ExportVector(150, 75)
	require.NoError(t, err)

	img, err := RasterizeForEmbedding(asset, PlacementRect{WidthPt: 150, HeightPt: 75}, 2)
	require.NoError(t, err)
	require.Equal(t, 300, img.Bounds().Dx())
	require.Equal(t, 150, img.Bounds().Dy())

	inked := 0
	for y := 0; y < 150; y++ {
		for x := 0; x < 300; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			inked++
			assert.Less(t, x, 150, "ink at x=%d", x)
			assert.Less(t, y, 75, "ink at y=%d", y)
		}
	}
	assert.Greater(t, inked, 100)
}
