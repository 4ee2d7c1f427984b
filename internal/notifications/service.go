package notifications

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// historySize bounds the toasts kept per session.
const historySize = 20

// Publisher pushes a message to live subscribers of a session.
type Publisher interface {
	SendToSession(sessionID string, message WebSocketMessage) error
}

// Notifier is what the signing flow reports status through.
type Notifier interface {
	Info(sessionID, message string)
	Error(sessionID, message string)
}

// Service keeps recent toasts per session and forwards them to a publisher.
type Service struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	history map[string][]Toast
}

// NewService creates a notification service. publisher may be nil.
func NewService(publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		history:   make(map[string][]Toast),
	}
}

// Info records a success toast.
func (s *Service) Info(sessionID, message string) {
	s.notify(sessionID, message, false)
}

// Error records an error toast.
func (s *Service) Error(sessionID, message string) {
	s.notify(sessionID, message, true)
}

func (s *Service) notify(sessionID, message string, isError bool) {
	now := s.now()
	t := Toast{
		SessionID: sessionID,
		Message:   message,
		IsError:   isError,
		CreatedAt: now,
		ExpiresAt: now.Add(DisplayDuration),
	}

	s.mu.Lock()
	h := append(s.history[sessionID], t)
	if len(h) > historySize {
		h = h[len(h)-historySize:]
	}
	s.history[sessionID] = h
	s.mu.Unlock()

	if s.publisher == nil {
		return
	}
	if err := s.publisher.SendToSession(sessionID, t.ToMessage()); err != nil {
		// No live subscriber is normal; the toast stays in history.
		s.logger.Debug("toast not pushed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Recent returns the session's toasts, oldest first.
func (s *Service) Recent(sessionID string) []Toast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Toast(nil), s.history[sessionID]...)
}

// Forget drops a session's history.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, sessionID)
}
