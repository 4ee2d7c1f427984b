package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"signing-portal/signing-portal-backend/internal/signature"
)

// StoreConfig configures new sessions and their lifetime.
type StoreConfig struct {
	TTL           time.Duration `json:"ttl"`
	SweepSchedule string        `json:"sweep_schedule"`
	PadWidth      float64       `json:"pad_width"`
	PadHeight     float64       `json:"pad_height"`
	BrushWidth    float64       `json:"brush_width"`
}

// DefaultStoreConfig returns default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TTL:           30 * time.Minute,
		SweepSchedule: "@every 1m",
		PadWidth:      400,
		PadHeight:     200,
		BrushWidth:    2,
	}
}

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	config  StoreConfig
	logger  *zap.Logger
	now     func() time.Time
	onEvict []func(id string)

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// NewStore creates an empty store.
func NewStore(config StoreConfig, logger *zap.Logger) *Store {
	if config.TTL <= 0 {
		config.TTL = DefaultStoreConfig().TTL
	}
	if config.SweepSchedule == "" {
		config.SweepSchedule = DefaultStoreConfig().SweepSchedule
	}
	return &Store{
		config:   config,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// OnEvict registers a callback run after a session is deleted or expires.
func (s *Store) OnEvict(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = append(s.onEvict, fn)
}

// Create starts a new session with an empty signature pad.
func (s *Store) Create() (*Session, error) {
	pad, err := signature.NewPad(s.config.PadWidth, s.config.PadHeight, signature.Brush{Width: s.config.BrushWidth})
	if err != nil {
		return nil, fmt.Errorf("create signature pad: %w", err)
	}
	sess := newSession(pad, s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session_id", sess.ID))
	return sess, nil
}

// Get returns a live session and marks it as used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	hooks := s.onEvict
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL. Busy sessions are
// kept until their operation finishes.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.config.TTL && !sess.Busy() {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	hooks := s.onEvict
	s.mu.Unlock()

	for _, id := range expired {
		for _, fn := range hooks {
			fn(id)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired sessions swept", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Start schedules the sweep.
func (s *Store) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.SweepSchedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.SweepSchedule, err)
	}
	s.cron.Start()
	s.logger.Info("session sweeper started", zap.String("schedule", s.config.SweepSchedule))
	return nil
}

// Stop halts the sweep and waits for a running sweep to finish.
func (s *Store) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
