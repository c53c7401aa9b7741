package filmsync

import (
	"io"
	"log/slog"
	"sync"

	"filmsync/internal/timeline"

	"github.com/google/uuid"
)

// Session is one coach's film-room view: an engine plus the mirrored
// surfaces the host player reports into.
type Session struct {
	ID       string
	Engine   *Engine
	Surfaces *MirrorProvider
}

// Manager owns the film-room sessions for one service instance. Each
// session gets its own engine seeded from the shared timeline library.
type Manager struct {
	mu         sync.Mutex
	library    *timeline.Library
	log        *slog.Logger
	engineOpts Options
	sessions   map[string]*Session
}

// NewManager returns a manager creating engines with the given options.
func NewManager(library *timeline.Library, log *slog.Logger, engineOpts Options) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		library:    library,
		log:        log,
		engineOpts: engineOpts,
		sessions:   make(map[string]*Session),
	}
}

// Create opens a new session seeded with the current timeline snapshot.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	surfaces := NewMirrorProvider()
	opts := m.engineOpts
	id := uuid.NewString()
	opts.Logger = m.log.With(slog.String("session_id", id))
	s := &Session{
		ID:       id,
		Engine:   NewEngine(m.library.Snapshot(), surfaces, opts),
		Surfaces: surfaces,
	}
	m.sessions[s.ID] = s
	m.log.Info("session created", slog.String("session_id", s.ID))
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and removes a session. Deleting an unknown session is a
// no-op for idempotency.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.Engine.Close()
	delete(m.sessions, id)
	m.log.Info("session closed", slog.String("session_id", id))
}

// RefreshTimelines pushes the library's current snapshot into every open
// session, e.g. after a new recording finished uploading. Each engine takes
// its own deep copy and retries its deferred switch slot.
func (m *Manager) RefreshTimelines() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Engine.ReplaceTimeline(m.library.Snapshot())
	}
}

// Count returns the number of open sessions. Used for metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Engine.Close()
		delete(m.sessions, id)
	}
}
