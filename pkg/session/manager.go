// Package session keeps one viewer controller per connected browser tab.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ErrTooManySessions is returned by Open when the session limit is reached.
var ErrTooManySessions = errors.New("too many sessions")

// Manager defines the interface for session operations.
type Manager interface {
	Start(ctx context.Context) error
	Stop() error

	// Open creates a session for a tab showing pageURL with the given search.
	Open(pageURL, search string, sink Sink) (*Session, error)
	Get(id uuid.UUID) (*Session, bool)
	Count() int
}

// manager implements Manager.
type manager struct {
	log      logrus.FieldLogger
	cfg      config.SessionConfig
	settings viewer.Settings
	metrics  *metrics.Metrics
	clock    clockwork.Clock

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Ensure manager implements Manager.
var _ Manager = (*manager)(nil)

// NewManager creates a new session manager.
func NewManager(log logrus.FieldLogger, cfg *config.Config, m *metrics.Metrics, clock clockwork.Clock) Manager {
	return &manager{
		log:      log.WithField("component", "session"),
		cfg:      cfg.Session,
		settings: cfg.ViewerSettings(),
		metrics:  m,
		clock:    clock,
		sessions: make(map[uuid.UUID]*Session, 64),
	}
}

// Start starts the idle session cleanup loop.
func (m *manager) Start(ctx context.Context) error {
	m.log.WithFields(logrus.Fields{
		"idle_timeout":     m.cfg.IdleTimeout,
		"cleanup_interval": m.cfg.CleanupInterval,
	}).Info("Starting session manager")

	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)

	go m.cleanupLoop(ctx)

	return nil
}

// Stop stops the cleanup loop and closes all sessions.
func (m *manager) Stop() error {
	m.log.Info("Stopping session manager")

	if m.cancel != nil {
		m.cancel()
	}

	m.wg.Wait()

	for _, s := range m.snapshot() {
		s.Close()
	}

	return nil
}

// Open creates and registers a new session.
func (m *manager) Open(pageURL, search string, sink Sink) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.metrics.RecordSessionRejected()

		return nil, ErrTooManySessions
	}

	s := newSession(m.log, m.clock, m.metrics, m.settings, pageURL, search, sink, m.remove)
	m.sessions[s.ID()] = s
	m.metrics.RecordSessionOpened()

	m.log.WithFields(logrus.Fields{
		"session": s.ID(),
		"search":  search,
	}).Debug("Session opened")

	return s, nil
}

// Get returns the session with the given id.
func (m *manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]

	return s, ok
}

// Count returns the number of open sessions.
func (m *manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// remove unregisters a closed session.
func (m *manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID()]; !ok {
		return
	}

	delete(m.sessions, s.ID())

	m.metrics.RecordSessionClosed(m.clock.Since(s.idleSince()) >= m.cfg.IdleTimeout)
	m.log.WithField("session", s.ID()).Debug("Session closed")
}

func (m *manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}

	return out
}

// cleanupLoop periodically closes sessions that have been idle too long.
func (m *manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.cleanup(m.cfg.IdleTimeout)
		}
	}
}

// cleanup closes sessions idle for longer than maxIdle.
func (m *manager) cleanup(maxIdle time.Duration) {
	cutoff := m.clock.Now().Add(-maxIdle)

	var closed int

	for _, s := range m.snapshot() {
		if !s.idleSince().After(cutoff) {
			s.Close()
			closed++
		}
	}

	if closed > 0 {
		m.log.WithField("count", closed).Info("Closed idle sessions")
	}
}
