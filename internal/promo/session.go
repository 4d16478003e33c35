package promo

import (
	"sync"
	"time"
)

// PendingPayment is the context a user's promotion flow carries between
// attaching a channel and the star payment arriving.
type PendingPayment struct {
	PaymentID       uint
	ChannelID       int64
	ChannelUsername string
	ChannelTitle    string
	Duration        string
	StarsRequired   int
}

type session struct {
	duration  string
	pending   *PendingPayment
	updatedAt time.Time
}

// SessionStore holds each user's in-flight promotion selection. State
// is in-memory only and lost on restart; the flow is re-runnable from
// /promote so nothing here needs to survive. One session per user,
// last write wins.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
	ttl      time.Duration
}

const defaultSessionTTL = 24 * time.Hour

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*session),
		ttl:      defaultSessionTTL,
	}
}

// get returns the live session for a user, dropping it first if it has
// outlived the TTL. Callers must hold s.mu.
func (s *SessionStore) get(userID int64) *session {
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	if time.Since(sess.updatedAt) > s.ttl {
		delete(s.sessions, userID)
		return nil
	}
	return sess
}

// SetDuration starts (or restarts) a user's promotion flow with the
// chosen duration. Any previous pending payment context is discarded so
// future payments bind to the newest selection.
func (s *SessionStore) SetDuration(userID int64, duration string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &session{duration: duration, updatedAt: time.Now()}
}

// Duration returns the user's selected duration, if any.
func (s *SessionStore) Duration(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(userID)
	if sess == nil || sess.duration == "" {
		return "", false
	}
	return sess.duration, true
}

// SetPending attaches the pending payment context to the user's flow.
func (s *SessionStore) SetPending(userID int64, pending *PendingPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(userID)
	if sess == nil {
		sess = &session{}
		s.sessions[userID] = sess
	}
	sess.pending = pending
	sess.updatedAt = time.Now()
}

// Pending returns the user's pending payment context, if any.
func (s *SessionStore) Pending(userID int64) (*PendingPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(userID)
	if sess == nil || sess.pending == nil {
		return nil, false
	}
	return sess.pending, true
}

// Clear drops the user's whole session.
func (s *SessionStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
