package core

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/provider/providertest"
	"radzz.ai/chat-orchestrator/internal/store"
)

type harness struct {
	kv       *store.MemoryStore
	adapter  *store.Adapter
	sessions *SessionStore
	profiles *ProfileStore
	gate     *EntitlementGate
	orch     *Orchestrator
	service  *ChatService
	provider *providertest.Fake
	media    *blockingMedia
	metrics  *Metrics
}

func newHarness(t *testing.T, user *store.User) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		kv:       store.NewMemoryStore(),
		provider: &providertest.Fake{},
		media:    &blockingMedia{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	h.adapter = store.NewAdapter(h.kv, log)
	if user != nil {
		if err := h.adapter.SaveProfile(user); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	h.sessions = NewSessionStore(h.adapter.LoadSessions())
	h.profiles = NewProfileStore(h.adapter, log)
	h.gate = NewEntitlementGate(h.profiles, h.metrics, log)
	h.orch = NewOrchestrator(h.sessions, h.gate, h.provider, h.media, h.metrics, log)
	h.service = NewChatService(h.sessions, h.profiles, h.orch, AttachmentIngester{MaxBytes: 16},
		NewPendingCheckout("key", "INR", log), TrialDefaults{Premium: 6, Study: 49}, log)
	return h
}

func (h *harness) user() store.User {
	u, _ := h.profiles.Get()
	return u
}

// blockingMedia returns immediately unless release is set, in which case it
// signals started and waits for release.
type blockingMedia struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (m *blockingMedia) block() {
	m.started = make(chan struct{})
	m.release = make(chan struct{})
}

func (m *blockingMedia) Generate(ctx context.Context, kind store.MediaType, _ string) (string, error) {
	if m.release != nil {
		close(m.started)
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return "https://media.example/" + string(kind), nil
}

var errTransport = errors.New("transport reset")

func freeUser() *store.User {
	return &store.User{Name: "Ada", Email: "ada@example.com", PremiumTrials: 6, StudyBuddyTrials: 49}
}
