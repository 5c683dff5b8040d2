package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	ProfileKey  = "profile"
	SessionsKey = "sessions"
)

// Adapter serializes the profile and the session collection to a KV backend.
// Load failures never propagate: the caller gets an empty default and the
// problem is logged.
type Adapter struct {
	kv  KV
	log *zap.Logger
}

func NewAdapter(kv KV, log *zap.Logger) *Adapter {
	return &Adapter{kv: kv, log: log}
}

func (a *Adapter) LoadProfile() *User {
	data, err := a.kv.Get(ProfileKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			a.log.Warn("profile_load_failed", zap.Error(err))
		}
		return nil
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		a.log.Warn("profile_parse_failed", zap.Error(err))
		return nil
	}
	return &user
}

// SaveProfile writes the profile, or removes it when user is nil.
func (a *Adapter) SaveProfile(user *User) error {
	if user == nil {
		return a.kv.Delete(ProfileKey)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return a.kv.Put(ProfileKey, data)
}

func (a *Adapter) LoadSessions() []ChatSession {
	data, err := a.kv.Get(SessionsKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			a.log.Warn("sessions_load_failed", zap.Error(err))
		}
		return nil
	}
	var sessions []ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		a.log.Warn("sessions_parse_failed", zap.Error(err))
		return nil
	}
	for i := range sessions {
		a.settleInterrupted(&sessions[i])
	}
	return sessions
}

// settleInterrupted resolves model messages a previous process left mid-send.
// A pending placeholder has no content and is dropped; a partially streamed
// reply keeps what arrived and becomes final.
func (a *Adapter) settleInterrupted(sess *ChatSession) {
	kept := sess.Messages[:0]
	for _, m := range sess.Messages {
		if m.Role == RoleModel {
			switch m.Content.State {
			case ContentPending:
				a.log.Warn("interrupted_message_dropped", zap.String("session", sess.ID), zap.String("message", m.ID))
				continue
			case ContentText:
				a.log.Warn("interrupted_message_finalized", zap.String("session", sess.ID), zap.String("message", m.ID))
				m.Content = Final(m.Content.Text)
			}
		}
		kept = append(kept, m)
	}
	sess.Messages = kept
}

func (a *Adapter) SaveSessions(sessions []ChatSession) error {
	if sessions == nil {
		sessions = []ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	return a.kv.Put(SessionsKey, data)
}
