// Package session scopes per-conversation mutable state. Each Teams
// conversation gets its own token and Genie conversation id, so concurrent
// chats never race on shared process-wide variables.
package session

import (
	"sync"
	"time"
)

// refreshSkew is how close to expiry a token is still considered stale.
const refreshSkew = 60 * time.Second

// Session holds the mutable state of one chat conversation. All methods are
// safe for concurrent use.
type Session struct {
	mu             sync.Mutex
	sessionID      string
	token          string
	tokenExpiry    time.Time
	conversationID string
}

// ID returns the session identifier (the Teams conversation id).
func (s *Session) ID() string { return s.sessionID }

// Token returns the cached Databricks token, or ok=false when no token is
// held or the held one is within the refresh window of its expiry.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || time.Now().After(s.tokenExpiry.Add(-refreshSkew)) {
		return "", false
	}
	return s.token, true
}

// SetToken stores a freshly exchanged token with its lifetime.
func (s *Session) SetToken(token string, expiresIn time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.tokenExpiry = time.Now().Add(expiresIn)
}

// ConversationID returns the Genie conversation id, empty before the first
// completed query of this session.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SetConversationID records the Genie conversation id for follow-up turns.
func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		s.conversationID = id
	}
}

// Manager is a keyed concurrent map of sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns the session for the given id, creating it on first use.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &Session{sessionID: sessionID}
		m.sessions[sessionID] = sess
	}
	return sess
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
