package messaging

import (
	"context"
	"sync"

	"github.com/oggyb/muzz-connect/internal/db"
)

// Session holds the one direct conversation a user has in focus. Focusing
// another partner closes the previous view, and its subscription, before the
// new one subscribes.
type Session struct {
	user  string
	coord *Coordinator

	mu   sync.Mutex
	view *View
}

func (c *Coordinator) NewSession(userID string) *Session {
	return &Session{user: userID, coord: c}
}

// Focus opens the conversation with partner.
func (s *Session) Focus(ctx context.Context, partner string, listener Listener) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view != nil {
		if err := s.view.Close(); err != nil {
			s.coord.log.Warn("closing previous conversation", "user", s.user, "key", s.view.Key(), "err", err)
		}
		s.view = nil
	}

	v, err := s.coord.Open(ctx, s.user, db.DirectKey(s.user, partner), listener)
	if err != nil {
		return nil, err
	}
	s.view = v
	return v, nil
}

// Current is the focused view, or nil.
func (s *Session) Current() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Close closes the focused view.
func (s *Session) Close() error {
	s.mu.Lock()
	v := s.view
	s.view = nil
	s.mu.Unlock()

	if v == nil {
		return nil
	}
	return v.Close()
}

// Sessions maps users to their session. A session is dropped once its
// focused view is released.
type Sessions struct {
	coord *Coordinator

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(c *Coordinator) *Sessions {
	return &Sessions{coord: c, sessions: make(map[string]*Session)}
}

// Focus focuses partner in userID's session. A session left without a view
// by a failed focus is forgotten.
func (s *Sessions) Focus(ctx context.Context, userID, partner string, listener Listener) (*View, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = s.coord.NewSession(userID)
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	v, err := sess.Focus(ctx, partner, listener)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		sess.mu.Lock()
		if sess.view == nil && s.sessions[userID] == sess {
			delete(s.sessions, userID)
		}
		sess.mu.Unlock()
		return nil, err
	}
	return v, nil
}

// Release closes v and forgets the session if v was still its focus.
func (s *Sessions) Release(userID string, v *View) error {
	err := v.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.mu.Lock()
		if sess.view == v {
			sess.view = nil
			delete(s.sessions, userID)
		}
		sess.mu.Unlock()
	}
	return err
}

// Len is the number of users with a session.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
