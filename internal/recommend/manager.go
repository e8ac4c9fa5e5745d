package recommend

import (
	"sync"

	"github.com/NainishK/smartsubs/api/internal/service"
)

// Manager hands out one Streams per user, mirroring the watchlist session
// lifecycle.
type Manager struct {
	engine Engine
	access AccessStore
	cache  service.JSONCache

	mu      sync.Mutex
	streams map[string]*Streams
}

func NewManager(engine Engine, access AccessStore, cache service.JSONCache) *Manager {
	return &Manager{
		engine:  engine,
		access:  access,
		cache:   cache,
		streams: make(map[string]*Streams),
	}
}

func (m *Manager) Get(userID string) *Streams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[userID]; ok {
		return s
	}
	s := NewStreams(userID, m.engine, m.access, m.cache)
	m.streams[userID] = s
	return s
}

func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, userID)
}
