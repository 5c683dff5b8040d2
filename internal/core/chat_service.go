package core

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

// TrialDefaults are the counters a freshly created profile starts with.
type TrialDefaults struct {
	Premium int
	Study   int
}

// ChatService is the surface the presentation layer talks to. It owns the
// profile lifecycle and routes everything else to the session store and
// orchestrator.
type ChatService struct {
	sessions     *SessionStore
	profiles     *ProfileStore
	orchestrator *Orchestrator
	attachments  AttachmentIngester
	checkout     Checkout
	trials       TrialDefaults
	log          *zap.Logger
}

func NewChatService(sessions *SessionStore, profiles *ProfileStore, orchestrator *Orchestrator, attachments AttachmentIngester, checkout Checkout, trials TrialDefaults, log *zap.Logger) *ChatService {
	return &ChatService{
		sessions:     sessions,
		profiles:     profiles,
		orchestrator: orchestrator,
		attachments:  attachments,
		checkout:     checkout,
		trials:       trials,
		log:          log,
	}
}

// Login signs a user in. Signing in again with the stored profile's email
// keeps its counters and premium flag; any other email starts a new profile.
func (s *ChatService) Login(name, email string, signup bool) (store.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return store.User{}, fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}
	if signup && name == "" {
		return store.User{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if name == "" {
		name = "Operator"
	}

	if current, ok := s.profiles.Get(); ok && strings.EqualFold(current.Email, email) {
		if signup {
			s.profiles.Update(func(u *store.User) bool {
				u.Name = name
				return true
			})
		}
		user, _ := s.profiles.Get()
		s.log.Info("profile_resumed", zap.String("email", email))
		return user, nil
	}

	user := store.User{
		Name:             name,
		Email:            email,
		PremiumTrials:    s.trials.Premium,
		StudyBuddyTrials: s.trials.Study,
	}
	s.profiles.Set(&user)
	s.log.Info("profile_created", zap.String("email", email))
	return user, nil
}

// Logout forgets the profile. Sessions stay on the device.
func (s *ChatService) Logout() {
	s.profiles.Set(nil)
}

func (s *ChatService) Profile() (store.User, bool) {
	return s.profiles.Get()
}

func (s *ChatService) ListSessions() []store.ChatSession {
	return s.sessions.ListSessions()
}

func (s *ChatService) GetSession(id string) (store.ChatSession, error) {
	sess, ok := s.sessions.Session(id)
	if !ok {
		return store.ChatSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, nil
}

func (s *ChatService) ActiveSession() string {
	return s.sessions.Active()
}

func (s *ChatService) SelectSession(id string) error {
	return s.sessions.SelectSession(id)
}

func (s *ChatService) StartNewSession() {
	s.sessions.StartNewSession()
}

func (s *ChatService) DeleteSession(id string) {
	if s.sessions.DeleteSession(id) {
		s.log.Info("session_deleted", zap.String("session", id))
	}
}

func (s *ChatService) Mode() provider.Mode {
	return s.orchestrator.Mode()
}

func (s *ChatService) SetMode(ctx context.Context, mode provider.Mode) error {
	return s.orchestrator.SetMode(ctx, mode)
}

// Send verifies any inline attachment before the send reaches the gate, so a
// rejected upload never costs a trial.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.Attachment != nil {
		att, err := s.attachments.Verify(*req.Attachment)
		if err != nil {
			return SendResult{}, err
		}
		req.Attachment = att
	}
	return s.orchestrator.Send(ctx, req)
}

// MaxEncodedAttachmentBytes is the attachment cap after base64 encoding.
func (s *ChatService) MaxEncodedAttachmentBytes() int64 {
	return s.attachments.MaxEncodedBytes()
}

func (s *ChatService) IngestAttachment(name, mimeType string, r io.Reader) (*store.Attachment, error) {
	return s.attachments.Ingest(name, mimeType, r)
}

func (s *ChatService) EditMedia(sessionID, messageID string, edits store.MediaEdits) error {
	return s.orchestrator.EditMedia(sessionID, messageID, edits)
}

// StartCheckout opens a payment for planID. Confirming it upgrades the
// signed-in profile to premium.
func (s *ChatService) StartCheckout(ctx context.Context, planID string) (CheckoutOrder, error) {
	if _, ok := s.profiles.Get(); !ok {
		return CheckoutOrder{}, ErrUnauthenticated
	}
	plan, err := PlanByID(planID)
	if err != nil {
		return CheckoutOrder{}, err
	}
	return s.checkout.OpenCheckout(ctx, plan.Price, plan.Label, s.upgrade)
}

func (s *ChatService) CompleteCheckout(ctx context.Context, orderID, paymentID string) error {
	return s.checkout.Complete(ctx, orderID, paymentID)
}

func (s *ChatService) upgrade() {
	s.profiles.Update(func(u *store.User) bool {
		if u.IsPremium {
			return false
		}
		u.IsPremium = true
		return true
	})
	s.log.Info("profile_upgraded")
}
