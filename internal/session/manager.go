package session

import (
	"context"
	"sync"

	"github.com/spherical/image-analyzer/internal/identity"
)

// Manager tracks live sessions by ID.
type Manager struct {
	services *Services

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(services *Services) *Manager {
	return &Manager{
		services: services,
		sessions: make(map[string]*Session),
	}
}

// Create starts a watching session and registers it.
func (m *Manager) Create(ctx context.Context, provider identity.Provider) (*Session, error) {
	sess, err := m.services.Start(ctx, provider, StartOptions{Watch: true})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
