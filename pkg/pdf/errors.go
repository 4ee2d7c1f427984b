package pdf

import "errors"

var (
	// ErrLoad is returned when the input bytes are not a parseable PDF.
	ErrLoad = errors.New("pdf load failed")
	// ErrIndex is returned for page indexes outside the document.
	ErrIndex = errors.New("page index out of range")
	// ErrPageRender is returned when a single page cannot be rasterized.
	ErrPageRender = errors.New("page render failed")
	// ErrEmbed is returned when an image cannot be placed on a page.
	ErrEmbed = errors.New("image embedding failed")
	// ErrSave is returned when the document cannot be serialized.
	ErrSave = errors.New("pdf save failed")
)
