package session

import (
	"sync"
	"time"

	"github.com/ethpandaops/specviewer/pkg/debounce"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// EventType identifies an outbound session event.
type EventType string

const (
	// EventState carries the view after a committed transition.
	EventState EventType = "state"
	// EventPushState asks the browser to push a history entry.
	EventPushState EventType = "push_state"
)

// Event is a notification for the browser tab owning a session.
type Event struct {
	Type   EventType    `json:"type"`
	View   *viewer.View `json:"view,omitempty"`
	Search string       `json:"search,omitempty"`
	Index  int          `json:"index"`
}

// Sink receives session events. It is called while the session's controller
// is locked and must not block.
type Sink func(Event)

// Session is the server side of one browser tab.
type Session struct {
	id      uuid.UUID
	log     logrus.FieldLogger
	clock   clockwork.Clock
	metrics *metrics.Metrics
	history *browserHistory
	ctrl    *viewer.Controller

	mu         sync.Mutex
	lastActive time.Time

	closeOnce sync.Once
	done      chan struct{}
	onClose   func(*Session)
}

func newSession(
	log logrus.FieldLogger,
	clock clockwork.Clock,
	m *metrics.Metrics,
	settings viewer.Settings,
	pageURL, search string,
	sink Sink,
	onClose func(*Session),
) *Session {
	id := uuid.New()

	s := &Session{
		id:         id,
		log:        log.WithField("session", id.String()),
		clock:      clock,
		metrics:    m,
		lastActive: clock.Now(),
		done:       make(chan struct{}),
		onClose:    onClose,
	}

	s.history = &browserHistory{
		MemoryHistory: viewer.NewMemoryHistory(search),
		sink:          sink,
		metrics:       m,
	}

	s.ctrl = viewer.NewController(s.log, settings, pageURL, s.history, debounce.WithClock(clock))
	s.ctrl.OnChange(func(view viewer.View) {
		m.RecordTransition(string(view.Cause))

		if view.Cause == viewer.CauseTheme {
			m.RecordThemeCommit()
		}

		sink(Event{Type: EventState, View: &view, Index: s.history.Index()})
	})

	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// View returns the current render snapshot.
func (s *Session) View() viewer.View {
	return s.ctrl.View()
}

// HistoryEntries returns the session's history entries.
func (s *Session) HistoryEntries() []string {
	return s.history.Entries()
}

// SelectSpec forwards a source picker change.
func (s *Session) SelectSpec(source string) {
	s.Touch()
	s.ctrl.SelectSpec(source)
}

// ToggleCORS forwards a CORS checkbox change.
func (s *Session) ToggleCORS(checked bool) {
	s.Touch()
	s.ctrl.ToggleCORS(checked)
}

// ThemeColor forwards raw color picker input.
func (s *Session) ThemeColor(color string) {
	s.Touch()
	s.metrics.RecordThemeInput()
	s.ctrl.ChangeThemeColor(color)
}

// PopState handles back/forward navigation in the browser. State is always
// re-derived from the browser's search. index only moves the session's
// cursor when the entry there holds the same search; entries from an earlier
// page load carry indices of another session and replace the current entry.
func (s *Session) PopState(index int, search string) {
	s.Touch()

	if entry, ok := s.history.At(index); ok && entry == search {
		s.history.Go(index)
	} else {
		s.log.WithField("index", index).Debug("History entry not known to session, replacing current entry")

		s.history.Replace(search)
	}

	s.ctrl.Restore(search)
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session and drops any pending theme change.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.ctrl.Close()
		close(s.done)

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// Touch marks the session as active so the idle reaper keeps it.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.clock.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

// browserHistory mirrors every push to the browser tab.
type browserHistory struct {
	*viewer.MemoryHistory
	sink    Sink
	metrics *metrics.Metrics
}

func (h *browserHistory) Push(search string) {
	h.MemoryHistory.Push(search)
	h.metrics.RecordHistoryPush()
	h.sink(Event{Type: EventPushState, Search: search, Index: h.Index()})
}
