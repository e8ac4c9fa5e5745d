package watchlist

import "sync"

// Manager hands out one Session per user for the lifetime of the process.
// Sessions are created lazily on first use and dropped on logout.
type Manager struct {
	store Store
	avail AvailabilitySource

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store Store, avail AvailabilitySource) *Manager {
	return &Manager{
		store:    store,
		avail:    avail,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID, m.store, m.avail)
	m.sessions[userID] = s
	return s
}

func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
