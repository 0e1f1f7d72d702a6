// Package session manages per-conversation state. Sessions are created
// lazily by opaque id and mutated only through the manager, which serializes
// access; independent sessions never share mutable state.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arief/naia/pkg/provider"
)

// Session holds one conversation's state.
type Session struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Messages  []provider.Message `json:"messages"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Manager owns all sessions for one agent instance.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	defaultModel string
}

// NewManager creates a session manager. defaultModel seeds new sessions.
func NewManager(defaultModel string) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		defaultModel: defaultModel,
	}
}

// validateID rejects ids that could not serve as storage keys.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(id, "/\\\x00") {
		return fmt.Errorf("session id cannot contain path separators or null bytes")
	}
	return nil
}

// GetOrCreate returns the session for id, creating it lazily on first
// reference.
func (m *Manager) GetOrCreate(id, userID string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, exists := m.sessions[id]; exists {
		return sess, nil
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		Messages:  []provider.Message{},
		Model:     m.defaultModel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[id] = sess

	log.Debug().Str("session_id", id).Str("user_id", userID).Msg("Session created")
	return sess, nil
}

// Append adds a message to a session's history.
func (m *Manager) Append(id string, msg provider.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
	return nil
}

// History returns a copy of a session's messages.
func (m *Manager) History(id string) ([]provider.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	messages := make([]provider.Message, len(sess.Messages))
	copy(messages, sess.Messages)
	return messages, nil
}

// Clear empties a session's message history, preserving its identity, model
// selection, and timestamps.
func (m *Manager) Clear(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Messages = []provider.Message{}
	log.Info().Str("session_id", id).Msg("Session cleared")
	return nil
}

// SetModel changes the session's selected model.
func (m *Manager) SetModel(id, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Model = model
	sess.UpdatedAt = time.Now()
	return nil
}

// Delete removes a session entirely.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List returns the ids of all live sessions.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// idleSince returns ids of sessions not updated since the cutoff.
func (m *Manager) idleSince(cutoff time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for id, sess := range m.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
