package core

import (
	"sync"

	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/store"
)

// ProfileStore holds the signed-in user and writes it through to the
// persistent store on every change.
type ProfileStore struct {
	mu      sync.Mutex
	user    *store.User
	adapter *store.Adapter
	log     *zap.Logger
}

func NewProfileStore(adapter *store.Adapter, log *zap.Logger) *ProfileStore {
	return &ProfileStore{user: adapter.LoadProfile(), adapter: adapter, log: log}
}

// Get returns a copy of the current profile.
func (p *ProfileStore) Get() (store.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return store.User{}, false
	}
	return *p.user, true
}

// Set replaces the profile; nil signs the user out.
func (p *ProfileStore) Set(user *store.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if user != nil {
		u := *user
		user = &u
	}
	p.user = user
	p.persist()
}

// Update runs fn on a copy of the profile under the store lock and commits
// the copy when fn reports a change. It returns false when nobody is signed
// in, without calling fn.
func (p *ProfileStore) Update(fn func(u *store.User) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return false
	}
	u := *p.user
	if fn(&u) {
		p.user = &u
		p.persist()
	}
	return true
}

func (p *ProfileStore) persist() {
	if err := p.adapter.SaveProfile(p.user); err != nil {
		p.log.Error("profile_write_failed", zap.Error(err))
	}
}
