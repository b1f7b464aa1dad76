package websocket

import (
	"sync"

	"github.com/parleychat/parley/pkg/Logger"
)

// Registry maps authenticated identities to their active session. At most
// one handle is tracked per identity; a later Put for the same identity
// wins.
type Registry struct {
	logger   *Logger.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *Logger.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Put registers a session for an identity, replacing any existing handle.
func (r *Registry) Put(identity string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.sessions[identity]; exists && old != s {
		r.logger.Infof("replacing session for identity %s (old session: %s)", identity, old.SessionID)
	}
	r.sessions[identity] = s
}

// Remove drops the identity's handle. No-op if absent.
func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, identity)
}

// RemoveIfCurrent drops the identity's handle only if it still points at s.
// Keeps a replacement connection registered when the replaced one finally
// disconnects.
func (r *Registry) RemoveIfCurrent(identity string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, exists := r.sessions[identity]; exists && cur == s {
		delete(r.sessions, identity)
	}
}

// Get returns the identity's active session.
func (r *Registry) Get(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[identity]
	return s, exists
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast sends an event to every registered session except the given
// one. Used for presence signals.
func (r *Registry) Broadcast(event string, payload any, except *Session) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != except {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	// send outside the lock
	for _, s := range targets {
		if err := s.SendEvent(event, payload); err != nil {
			r.logger.Debugf("failed to broadcast %s to session %s: %v", event, s.SessionID, err)
		}
	}
}
