package server

import (
	"sync"
)

// hub tracks connected sessions so they can be counted and closed on
// shutdown.
type hub struct {
	sessions map[*session]bool
	mu       sync.RWMutex
}

func newHub() *hub {
	return &hub{sessions: make(map[*session]bool)}
}

func (h *hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()
}

func (h *hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// broadcast sends frame to every session, dropping sessions whose write
// fails.
func (h *hub) broadcast(frame Frame) {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.write(frame); err != nil {
			h.remove(s)
			s.close()
		}
	}
}

// count returns the number of connected sessions.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeAll notifies and closes every session.
func (h *hub) closeAll() {
	h.broadcast(Frame{Type: FrameShutdown})

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		s.close()
		delete(h.sessions, s)
	}
}
