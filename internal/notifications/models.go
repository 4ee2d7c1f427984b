package notifications

import "time"

// DisplayDuration is how long clients should show a toast.
const DisplayDuration = 3 * time.Second

// Toast is a transient, non-blocking status message for one session.
type Toast struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WebSocket message types
const (
	WSMessageTypeToast  = "toast"
	WSMessageTypeStatus = "status"
)

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Target    string         `json:"target"` // session id
}

// ToMessage wraps a toast for the wire.
func (t Toast) ToMessage() WebSocketMessage {
	return WebSocketMessage{
		Type: WSMessageTypeToast,
		Data: map[string]any{
			"message":    t.Message,
			"is_error":   t.IsError,
			"expires_at": t.ExpiresAt,
		},
		Timestamp: t.CreatedAt,
		Target:    t.SessionID,
	}
}
