package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"radzz.ai/chat-orchestrator/internal/store"
)

const (
	WelcomeMessageID = "initial-welcome"
	welcomeText      = "System online. I am RADZZ AI. Select a mode and begin."

	titleMaxRunes = 40
	defaultTitle  = "New Chat"
)

// SessionStore is the in-memory collection of chat sessions, most recent
// first. All methods are safe for concurrent use; mutation of a session or
// message that no longer exists is a silent no-op so a background stream can
// outlive the session it was writing into.
type SessionStore struct {
	mu       sync.Mutex
	sessions []store.ChatSession
	active   string
	onChange func()

	now   func() time.Time
	newID func() string
}

// NewSessionStore seeds the store with previously persisted sessions. The
// most recent one, if any, becomes active.
func NewSessionStore(initial []store.ChatSession) *SessionStore {
	s := &SessionStore{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, sess := range initial {
		s.sessions = append(s.sessions, sess.Clone())
	}
	if len(s.sessions) > 0 {
		s.active = s.sessions[0].ID
	}
	return s
}

// SetOnChange registers the hook run after every change to the collection.
func (s *SessionStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *SessionStore) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ListSessions returns deep copies, most recent first.
func (s *SessionStore) ListSessions() []store.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Snapshot is ListSessions under the name the persistence writer expects.
func (s *SessionStore) Snapshot() []store.ChatSession {
	return s.ListSessions()
}

func (s *SessionStore) Session(id string) (store.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.sessions[i].Clone(), true
	}
	return store.ChatSession{}, false
}

// Active returns the active session id, or "" in the new-chat state.
func (s *SessionStore) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SelectSession makes id active. An unknown id returns ErrNotFound and leaves
// the active pointer untouched.
func (s *SessionStore) SelectSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return fmt.Errorf("select session %s: %w", id, ErrNotFound)
	}
	s.active = id
	return nil
}

// StartNewSession clears the active pointer. The session record is created
// lazily by the next AppendMessage.
func (s *SessionStore) StartNewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
}

// AppendMessage appends msg to targetID, or to the active session when
// targetID is empty. With neither, a new session is created, seeded with the
// welcome message and made active. It returns the id of the session written.
func (s *SessionStore) AppendMessage(msg store.Message, targetID string) (string, error) {
	s.mu.Lock()
	id := targetID
	if id == "" {
		id = s.active
	}

	if id == "" {
		sess := store.ChatSession{
			ID:        s.newID(),
			Title:     sessionTitle(msg),
			CreatedAt: s.now(),
			Messages:  []store.Message{welcomeMessage(), msg.Clone()},
		}
		s.sessions = append([]store.ChatSession{sess}, s.sessions...)
		s.active = sess.ID
		s.mu.Unlock()
		s.changed()
		return sess.ID, nil
	}

	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("append to session %s: %w", id, ErrNotFound)
	}
	s.sessions[i].Messages = append(s.sessions[i].Messages, msg.Clone())
	s.mu.Unlock()
	s.changed()
	return id, nil
}

// MutateMessage applies fn to the one message matching both ids and reports
// whether it was found. The message id cannot be changed by fn.
func (s *SessionStore) MutateMessage(sessionID, messageID string, fn func(*store.Message)) bool {
	s.mu.Lock()
	si, mi := s.locate(sessionID, messageID)
	if mi < 0 {
		s.mu.Unlock()
		return false
	}
	msg := s.sessions[si].Messages[mi].Clone()
	fn(&msg)
	msg.ID = messageID
	s.sessions[si].Messages[mi] = msg
	s.mu.Unlock()
	s.changed()
	return true
}

// RemoveMessage drops a single message. Only the orchestrator uses it, to
// roll back a placeholder whose response failed.
func (s *SessionStore) RemoveMessage(sessionID, messageID string) bool {
	s.mu.Lock()
	si, mi := s.locate(sessionID, messageID)
	if mi < 0 {
		s.mu.Unlock()
		return false
	}
	msgs := s.sessions[si].Messages
	s.sessions[si].Messages = append(msgs[:mi:mi], msgs[mi+1:]...)
	s.mu.Unlock()
	s.changed()
	return true
}

// DeleteSession removes a session. Deleting the active session activates the
// next most recent one, or none.
func (s *SessionStore) DeleteSession(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	if s.active == id {
		s.active = ""
		if len(s.sessions) > 0 {
			s.active = s.sessions[0].ID
		}
	}
	s.mu.Unlock()
	s.changed()
	return true
}

func (s *SessionStore) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *SessionStore) locate(sessionID, messageID string) (int, int) {
	si := s.indexOf(sessionID)
	if si < 0 {
		return -1, -1
	}
	for mi := range s.sessions[si].Messages {
		if s.sessions[si].Messages[mi].ID == messageID {
			return si, mi
		}
	}
	return si, -1
}

func welcomeMessage() store.Message {
	return store.Message{ID: WelcomeMessageID, Role: store.RoleModel, Content: store.Final(welcomeText)}
}

func sessionTitle(msg store.Message) string {
	text := strings.TrimSpace(msg.Content.Text)
	if text == "" {
		return defaultTitle
	}
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + "..."
}
