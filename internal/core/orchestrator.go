package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

// Route is the operation a send is dispatched to.
type Route string

const (
	RouteImage  Route = "image"
	RouteVideo  Route = "video"
	RouteSearch Route = "search"
	RouteStream Route = "stream"
)

// RouteFor applies the dispatch order: image trigger, video mode, real-time
// mode, then streaming chat.
func RouteFor(mode provider.Mode, text string) Route {
	switch {
	case isImageRequest(text):
		return RouteImage
	case mode == provider.ModeVideoGeneration:
		return RouteVideo
	case mode == provider.ModeRealTimeData:
		return RouteSearch
	default:
		return RouteStream
	}
}

type EventKind string

const (
	EventSession  EventKind = "session"  // the send resolved its target session
	EventMessage  EventKind = "message"  // a message was appended
	EventFragment EventKind = "fragment" // a streamed fragment was applied
	EventResolved EventKind = "resolved" // the model message reached its final state
	EventRemoved  EventKind = "removed"  // the placeholder was rolled back
)

type Event struct {
	Kind      EventKind      `json:"kind"`
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id,omitempty"`
	Fragment  string         `json:"fragment,omitempty"`
	Message   *store.Message `json:"message,omitempty"`
}

// Observer receives progress events for one send, in order, on the sending
// goroutine.
type Observer func(Event)

type SendRequest struct {
	Text       string
	Attachment *store.Attachment
	Observer   Observer
}

type SendResult struct {
	Decision     Decision
	Route        Route
	SessionID    string
	UserMessage  store.Message
	ModelMessage *store.Message // nil when the placeholder was rolled back
}

// Orchestrator turns one send into a user message and a model message and
// drives the model message to its final state. Only one send runs at a time.
type Orchestrator struct {
	sessions *SessionStore
	gate     *EntitlementGate
	provider provider.Provider
	media    MediaGenerator
	metrics  *Metrics
	log      *zap.Logger
	newID    func() string

	slot *semaphore.Weighted

	modeMu sync.Mutex
	mode   provider.Mode
	handle provider.Handle
}

func NewOrchestrator(sessions *SessionStore, gate *EntitlementGate, p provider.Provider, media MediaGenerator, metrics *Metrics, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		gate:     gate,
		provider: p,
		media:    media,
		metrics:  metrics,
		log:      log,
		newID:    uuid.NewString,
		slot:     semaphore.NewWeighted(1),
		mode:     provider.ModeRadzz,
	}
}

// Mode returns the currently selected conversation mode.
func (o *Orchestrator) Mode() provider.Mode {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()
	return o.mode
}

// SetMode switches mode and asks the provider for a handle bound to it. A
// send already in flight keeps the handle it started with.
func (o *Orchestrator) SetMode(ctx context.Context, mode provider.Mode) error {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()
	if mode == o.mode && o.handle != nil {
		return nil
	}
	h, err := o.provider.Configure(ctx, mode)
	if err != nil {
		return fmt.Errorf("configure provider for %s: %w", mode, err)
	}
	o.mode, o.handle = mode, h
	o.log.Info("mode_changed", zap.String("mode", string(mode)))
	return nil
}

func (o *Orchestrator) current(ctx context.Context) (provider.Mode, provider.Handle, error) {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()
	if o.handle == nil {
		h, err := o.provider.Configure(ctx, o.mode)
		if err != nil {
			return "", nil, fmt.Errorf("configure provider for %s: %w", o.mode, err)
		}
		o.handle = h
	}
	return o.mode, o.handle, nil
}

// Send gates and dispatches one user input. A gate denial is reported in
// SendResult.Decision with a nil error. Operational failures roll back the
// model placeholder, keep the user message and return an error wrapping
// ErrConnection, ErrFetch or ErrMediaGeneration.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Attachment == nil {
		return SendResult{}, ErrEmptyMessage
	}
	if !o.slot.TryAcquire(1) {
		return SendResult{}, ErrSendInProgress
	}
	defer o.slot.Release(1)

	mode, handle, err := o.current(ctx)
	if err != nil {
		return SendResult{}, err
	}

	decision := o.gate.CheckAndReserve(mode, text)
	if !decision.Admitted {
		return SendResult{Decision: decision}, nil
	}

	ex := &exchange{
		o:        o,
		observer: req.Observer,
		result:   SendResult{Decision: decision, Route: RouteFor(mode, text)},
	}
	started := time.Now()
	userMsg := store.Message{ID: o.newID(), Role: store.RoleUser, Content: store.Text(text), Attachment: req.Attachment}

	switch ex.result.Route {
	case RouteImage:
		err = ex.generateMedia(ctx, store.MediaImage, userMsg)
	case RouteVideo:
		err = ex.generateMedia(ctx, store.MediaVideo, userMsg)
	case RouteSearch:
		err = ex.search(ctx, handle, userMsg)
	default:
		err = ex.stream(ctx, handle, userMsg)
	}
	if errors.Is(err, errSessionGone) {
		o.log.Info("send_abandoned", zap.String("session", ex.result.SessionID))
		err = nil
	}
	o.metrics.send(ex.result.Route, started, err)

	fields := []zap.Field{
		zap.String("route", string(ex.result.Route)),
		zap.String("mode", string(mode)),
		zap.String("session", ex.result.SessionID),
		zap.Duration("elapsed", time.Since(started)),
	}
	if err != nil {
		o.log.Warn("send_failed", append(fields, zap.Error(err))...)
	} else {
		o.log.Info("send_completed", fields...)
	}
	return ex.result, err
}

// EditMedia attaches post-generation edits to a media message. A missing
// session or message is ignored.
func (o *Orchestrator) EditMedia(sessionID, messageID string, edits store.MediaEdits) error {
	edits, err := normalizeEdits(edits)
	if err != nil {
		return err
	}
	hasMedia := true
	o.sessions.MutateMessage(sessionID, messageID, func(m *store.Message) {
		if m.Media == nil {
			hasMedia = false
			return
		}
		e := edits
		m.Media.Edits = &e
	})
	if !hasMedia {
		return fmt.Errorf("edit message %s: %w", messageID, ErrNoMedia)
	}
	return nil
}

// errSessionGone ends a send whose session was deleted before the model
// placeholder could be added. Send reports it as success with no model message.
var errSessionGone = errors.New("session deleted during send")

// exchange is the state of one admitted send.
type exchange struct {
	o             *Orchestrator
	observer      Observer
	result        SendResult
	placeholderID string
}

func (ex *exchange) emit(e Event) {
	if ex.observer != nil {
		ex.observer(e)
	}
}

// open appends the user message and a model placeholder.
func (ex *exchange) open(userMsg store.Message, placeholder store.Content) error {
	sid, err := ex.o.sessions.AppendMessage(userMsg, "")
	if err != nil {
		return fmt.Errorf("append user message: %w", err)
	}
	ex.result.SessionID = sid
	ex.result.UserMessage = userMsg.Clone()
	ex.emit(Event{Kind: EventSession, SessionID: sid})
	ex.emit(Event{Kind: EventMessage, SessionID: sid, MessageID: userMsg.ID, Message: &ex.result.UserMessage})

	model := store.Message{ID: ex.o.newID(), Role: store.RoleModel, Content: placeholder}
	if _, err := ex.o.sessions.AppendMessage(model, sid); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errSessionGone
		}
		return fmt.Errorf("append placeholder: %w", err)
	}
	ex.placeholderID = model.ID
	ex.result.ModelMessage = &model
	announced := model.Clone()
	ex.emit(Event{Kind: EventMessage, SessionID: sid, MessageID: model.ID, Message: &announced})
	return nil
}

// mutate updates the placeholder in the store and the exchange's own copy.
// When the session was deleted mid-flight only the copy changes.
func (ex *exchange) mutate(fn func(*store.Message)) {
	var stored store.Message
	found := ex.o.sessions.MutateMessage(ex.result.SessionID, ex.placeholderID, func(m *store.Message) {
		fn(m)
		stored = m.Clone()
	})
	if found {
		*ex.result.ModelMessage = stored
		return
	}
	fn(ex.result.ModelMessage)
}

func (ex *exchange) resolve() {
	msg := ex.result.ModelMessage.Clone()
	ex.emit(Event{Kind: EventResolved, SessionID: ex.result.SessionID, MessageID: ex.placeholderID, Message: &msg})
}

func (ex *exchange) rollback() {
	ex.o.sessions.RemoveMessage(ex.result.SessionID, ex.placeholderID)
	ex.result.ModelMessage = nil
	ex.emit(Event{Kind: EventRemoved, SessionID: ex.result.SessionID, MessageID: ex.placeholderID})
}

// stream consumes fragments strictly in order: fragment N is applied before
// fragment N+1 is requested.
func (ex *exchange) stream(ctx context.Context, h provider.Handle, userMsg store.Message) error {
	if err := ex.open(userMsg, store.Pending("")); err != nil {
		return err
	}
	for fragment, err := range h.StreamMessage(ctx, userMsg.Content.Text) {
		if err != nil {
			ex.rollback()
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		ex.mutate(func(m *store.Message) {
			m.Content = store.Text(m.Content.Text + fragment)
		})
		ex.o.metrics.fragment()
		ex.emit(Event{Kind: EventFragment, SessionID: ex.result.SessionID, MessageID: ex.placeholderID, Fragment: fragment})
	}
	ex.mutate(func(m *store.Message) {
		m.Content = store.Final(m.Content.Text)
	})
	ex.resolve()
	return nil
}

func (ex *exchange) search(ctx context.Context, h provider.Handle, userMsg store.Message) error {
	if err := ex.open(userMsg, store.Pending("")); err != nil {
		return err
	}
	res, err := h.SearchMessage(ctx, userMsg.Content.Text)
	if err != nil {
		ex.rollback()
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	ex.mutate(func(m *store.Message) {
		m.Content = store.Final(res.Text)
		m.Sources = append([]store.GroundingSource(nil), res.Sources...)
	})
	ex.resolve()
	return nil
}

func (ex *exchange) generateMedia(ctx context.Context, kind store.MediaType, userMsg store.Message) error {
	status := fmt.Sprintf("Generating %s, please wait...", kind)
	if err := ex.open(userMsg, store.Pending(status)); err != nil {
		return err
	}
	url, err := ex.o.media.Generate(ctx, kind, userMsg.Content.Text)
	if err != nil {
		ex.rollback()
		return fmt.Errorf("%w: %v", ErrMediaGeneration, err)
	}
	ex.mutate(func(m *store.Message) {
		m.Content = store.Final(fmt.Sprintf("Here is the %s you requested.", kind))
		m.Media = &store.Media{Type: kind, URL: url, IsPlaceholder: true}
	})
	ex.resolve()
	return nil
}
