package placement

import "signing-portal/signing-portal-backend/pkg/workflows"

// DragPhase is the pointer lifecycle of an overlay.
type DragPhase string

const (
	PhaseIdle     DragPhase = "IDLE"
	PhaseDragging DragPhase = "DRAGGING"
)

// PointerKind identifies a pointer event.
type PointerKind string

const (
	PointerDown PointerKind = "down"
	PointerMove PointerKind = "move"
	PointerUp   PointerKind = "up"
)

// PointerEvent is a pointer position in client pixels.
type PointerEvent struct {
	Kind    PointerKind `json:"kind" binding:"required"`
	ClientX float64     `json:"client_x"`
	ClientY float64     `json:"client_y"`
}

// Drag holds the translation applied to an overlay since it was placed.
// Values are immutable; Apply returns the next state.
type Drag struct {
	Phase   DragPhase `json:"phase"`
	OffsetX float64   `json:"offset_x"`
	OffsetY float64   `json:"offset_y"`

	anchorX, anchorY float64
}

var dragMachine = workflows.NewDragStateMachine()

// NewDrag returns an idle drag with no translation.
func NewDrag() Drag {
	return Drag{Phase: PhaseIdle}
}

// Apply advances the drag by one pointer event. Events that the current
// phase does not accept leave the state unchanged.
func (d Drag) Apply(ev PointerEvent) Drag {
	var next DragPhase
	switch ev.Kind {
	case PointerDown:
		next = PhaseDragging
	case PointerMove:
		if d.Phase != PhaseDragging {
			return d
		}
		next = PhaseDragging
	case PointerUp:
		next = PhaseIdle
	default:
		return d
	}
	if !dragMachine.CanTransition(string(d.Phase), string(next)) {
		return d
	}

	switch ev.Kind {
	case PointerDown:
		d.anchorX = ev.ClientX - d.OffsetX
		d.anchorY = ev.ClientY - d.OffsetY
	case PointerMove:
		d.OffsetX = ev.ClientX - d.anchorX
		d.OffsetY = ev.ClientY - d.anchorY
	}
	d.Phase = next
	return d
}

// Translate shifts an overlay by the drag offset.
func (d Drag) Translate(o OverlayRect) OverlayRect {
	o.LeftPx += d.OffsetX
	o.TopPx += d.OffsetY
	return o
}
