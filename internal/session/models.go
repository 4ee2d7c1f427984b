package session

import (
	"errors"
	"time"

	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/signature"
	"signing-portal/signing-portal-backend/pkg/pdf"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrBusy              = errors.New("another operation is in progress")
	ErrNoDocument        = errors.New("no document loaded")
	ErrNoSignature       = errors.New("no saved signature")
	ErrPlacementNotFound = errors.New("placement not found")
	ErrInvalidSize       = errors.New("signature size must be positive")
)

// DefaultSignatureSize is the initial overlay width in screen pixels.
const DefaultSignatureSize = 150

// Placement is a signature overlay dropped on a page preview. Overlay is
// where it was dropped; the drag offset moves it from there.
type Placement struct {
	ID        string                  `json:"id"`
	PageIndex int                     `json:"page_index"`
	Overlay   placement.OverlayRect   `json:"overlay"`
	Container placement.ContainerRect `json:"container"`
	Drag      placement.Drag          `json:"drag"`
	CreatedAt time.Time               `json:"created_at"`
}

// Current returns the overlay after applying the drag offset.
func (p Placement) Current() placement.OverlayRect {
	return p.Drag.Translate(p.Overlay)
}

// DocumentInfo describes the loaded document.
type DocumentInfo struct {
	FileName  string         `json:"file_name"`
	PageCount int            `json:"page_count"`
	Pages     []pdf.Geometry `json:"pages"`
}

// SignatureInfo describes the saved signature.
type SignatureInfo struct {
	Saved       bool    `json:"saved"`
	Size        float64 `json:"size"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	StrokeCount int     `json:"stroke_count"`
}

// Snapshot is the state needed to produce a signed document. It is copied
// out of the session so signing runs without holding the session lock.
type Snapshot struct {
	SessionID  string
	FileName   string
	Source     *pdf.Document
	Signature  *signature.Asset
	Placements []Placement
}
