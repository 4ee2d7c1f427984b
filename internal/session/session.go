package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/signature"
	"signing-portal/signing-portal-backend/pkg/pdf"
)

// Session is the state of one signing workflow: the uploaded document, the
// signature pad, the saved signature and the overlays placed on pages.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	lastSeen      time.Time
	busy          bool
	fileName      string
	document      *pdf.Document
	pad           *signature.Pad
	signature     *signature.Asset
	signatureSize float64
	placements    map[string]*Placement
}

func newSession(pad *signature.Pad, now time.Time) *Session {
	return &Session{
		ID:            uuid.New().String(),
		CreatedAt:     now,
		lastSeen:      now,
		pad:           pad,
		signatureSize: DefaultSignatureSize,
		placements:    make(map[string]*Placement),
	}
}

// TryBegin claims the session for a document load or save. It fails with
// ErrBusy while another such operation is running.
func (s *Session) TryBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// End releases the claim taken by TryBegin.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// Busy reports whether a load or save is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SetDocument replaces the loaded document. Placements from a previous
// document are dropped.
func (s *Session) SetDocument(fileName string, doc *pdf.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = fileName
	s.document = doc
	s.placements = make(map[string]*Placement)
}

// ResetDocument returns the session to "no document loaded".
func (s *Session) ResetDocument() {
	s.SetDocument("", nil)
}

// Document returns the loaded document or ErrNoDocument.
func (s *Session) Document() (*pdf.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return nil, ErrNoDocument
	}
	return s.document, nil
}

// DocumentInfo describes the loaded document.
func (s *Session) DocumentInfo() (DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return DocumentInfo{}, ErrNoDocument
	}
	return DocumentInfo{
		FileName:  s.fileName,
		PageCount: s.document.PageCount(),
		Pages:     s.document.Pages(),
	}, nil
}

// Pad returns the signature drawing pad.
func (s *Session) Pad() *signature.Pad {
	return s.pad
}

// SaveSignature exports the pad at the current signature size and keeps the
// result as the session's signature. The export height follows the pad's
// aspect ratio.
func (s *Session) SaveSignature() (signature.Asset, error) {
	s.mu.Lock()
	size := s.signatureSize
	s.mu.Unlock()

	w, h := s.pad.Size()
	asset, err := s.pad.ExportVector(size, size*h/w)
	if err != nil {
		return signature.Asset{}, err
	}

	s.mu.Lock()
	s.signature = &asset
	s.mu.Unlock()
	return asset, nil
}

// ClearSignature wipes the pad and forgets the saved signature. Overlays
// already placed keep their geometry but cannot be signed until a new
// signature is saved.
func (s *Session) ClearSignature() {
	s.pad.Clear()
	s.mu.Lock()
	s.signature = nil
	s.mu.Unlock()
}

// Signature returns the saved signature or ErrNoSignature.
func (s *Session) Signature() (signature.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signature == nil {
		return signature.Asset{}, ErrNoSignature
	}
	return *s.signature, nil
}

// SignatureInfo summarizes the pad and the saved signature.
func (s *Session) SignatureInfo() SignatureInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SignatureInfo{Size: s.signatureSize, StrokeCount: s.pad.StrokeCount()}
	if s.signature != nil {
		info.Saved = true
		info.Width = s.signature.Width
		info.Height = s.signature.Height
	}
	return info
}

// SetSignatureSize changes the overlay width. Existing overlays are resized
// in place, keeping their top-left corner and the signature's aspect ratio.
func (s *Session) SetSignatureSize(size float64) error {
	if size <= 0 {
		return ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatureSize = size
	if s.signature == nil {
		return nil
	}
	aspect := s.signature.AspectRatio()
	for _, p := range s.placements {
		p.Overlay.WidthPx = size
		p.Overlay.HeightPx = size * aspect
	}
	return nil
}

// AddPlacement drops a signature overlay on a page. The overlay's size comes
// from the current signature size; only its position is taken from the
// caller.
func (s *Session) AddPlacement(pageIndex int, leftPx, topPx float64, container placement.ContainerRect) (Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document == nil {
		return Placement{}, ErrNoDocument
	}
	if s.signature == nil {
		return Placement{}, ErrNoSignature
	}
	if _, err := s.document.PageGeometry(pageIndex); err != nil {
		return Placement{}, err
	}

	p := &Placement{
		ID:        uuid.New().String(),
		PageIndex: pageIndex,
		Overlay: placement.OverlayRect{
			LeftPx:   leftPx,
			TopPx:    topPx,
			WidthPx:  s.signatureSize,
			HeightPx: s.signatureSize * s.signature.AspectRatio(),
		},
		Container: container,
		Drag:      placement.NewDrag(),
		CreatedAt: time.Now(),
	}
	s.placements[p.ID] = p
	return *p, nil
}

// Pointer feeds a pointer event to a placement's drag state.
func (s *Session) Pointer(id string, ev placement.PointerEvent) (Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placements[id]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	p.Drag = p.Drag.Apply(ev)
	return *p, nil
}

// SetContainer records the page preview's bounding box as measured at
// commit time.
func (s *Session) SetContainer(id string, container placement.ContainerRect) (Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placements[id]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	p.Container = container
	return *p, nil
}

// RemovePlacement deletes an overlay.
func (s *Session) RemovePlacement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.placements[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	delete(s.placements, id)
	return nil
}

// Placements returns the overlays ordered by page, then creation time.
func (s *Session) Placements() []Placement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placementsLocked()
}

func (s *Session) placementsLocked() []Placement {
	out := make([]Placement, 0, len(s.placements))
	for _, p := range s.placements {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageIndex != out[j].PageIndex {
			return out[i].PageIndex < out[j].PageIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshot copies what signing needs. The document is cloned so the
// session's copy is never modified by a save.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return Snapshot{}, ErrNoDocument
	}
	if s.signature == nil {
		return Snapshot{}, ErrNoSignature
	}
	sig := *s.signature
	return Snapshot{
		SessionID:  s.ID,
		FileName:   s.fileName,
		Source:     s.document.Clone(),
		Signature:  &sig,
		Placements: s.placementsLocked(),
	}, nil
}
