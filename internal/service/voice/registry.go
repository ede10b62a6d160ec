package voice

import (
	"fmt"
	"sync"

	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
)

// Registry tracks live sessions by connection id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add fails when the id already belongs to a live session.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("connection %q already active", s.ID)
	}
	r.sessions[s.ID] = s
	telemetry.ActiveVoiceSessions.Set(float64(len(r.sessions)))
	return nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	telemetry.ActiveVoiceSessions.Set(float64(len(r.sessions)))
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
