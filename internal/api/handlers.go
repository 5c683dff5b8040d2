package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/auth"
	"radzz.ai/chat-orchestrator/internal/core"
	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
	limiter     *limiterPool
	log         *zap.Logger
}

// NewAPIHandler serves cs. sendRPS and sendBurst bound how fast one client
// may post messages.
func NewAPIHandler(cs *core.ChatService, sendRPS float64, sendBurst int, log *zap.Logger) *APIHandler {
	return &APIHandler{chatService: cs, limiter: newLimiterPool(sendRPS, sendBurst), log: log}
}

type errorResponse struct {
	Error   string `json:"error"`
	Upgrade bool   `json:"upgrade,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownPlan), errors.Is(err, core.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSendInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrEmptyMessage), errors.Is(err, core.ErrInvalidFilter),
		errors.Is(err, core.ErrNoMedia), errors.Is(err, core.ErrInvalidProfile),
		errors.Is(err, core.ErrInvalidAttachment),
		errors.Is(err, provider.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTrialsExhausted), errors.Is(err, core.ErrStudyTrialsExhausted):
		return http.StatusPaymentRequired
	case errors.Is(err, core.ErrConnection), errors.Is(err, core.ErrFetch), errors.Is(err, core.ErrMediaGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) errorResponse {
	msg := core.Banner(err)
	if msg == "" {
		msg = err.Error()
	}
	return errorResponse{Error: msg, Upgrade: errors.Is(err, core.ErrTrialsExhausted)}
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request_failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(core.ErrAttachmentTooLarge))
			return false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

type LoginRequest struct {
	Mode     string `json:"mode"` // "login" or "signup"
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Password is required")
		return
	}

	user, err := h.chatService.Login(req.Name, req.Email, req.Mode == "signup")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := auth.GenerateJWT(user.Email)
	if err != nil {
		h.log.Error("jwt_sign_failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.chatService.Profile()
	if !ok {
		h.writeError(w, r, core.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.chatService.Logout()
	w.WriteHeader(http.StatusNoContent)
}

type sessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  int       `json:"messages"`
}

type ListSessionsResponse struct {
	Active   string           `json:"active"`
	Mode     provider.Mode    `json:"mode"`
	Sessions []sessionSummary `json:"sessions"`
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := h.chatService.ListSessions()
	resp := ListSessionsResponse{
		Active:   h.chatService.ActiveSession(),
		Mode:     h.chatService.Mode(),
		Sessions: make([]sessionSummary, 0, len(sessions)),
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionSummary{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			Messages:  len(s.Messages),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatService.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *APIHandler) SelectSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.SelectSession(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) NewSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.chatService.StartNewSession()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSessionHandler is idempotent: deleting an unknown session succeeds.
func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.chatService.DeleteSession(chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, map[string]string{"active": h.chatService.ActiveSession()})
}

type SetModeRequest struct {
	Mode string `json:"mode"`
}

func (h *APIHandler) SetModeHandler(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := provider.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.chatService.SetMode(r.Context(), mode); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]provider.Mode{"mode": mode})
}

// messageBodySlack covers the message text and JSON framing around an
// attachment at the size cap.
const messageBodySlack = 64 << 10

type PostMessageRequest struct {
	Text       string            `json:"text"`
	Attachment *store.Attachment `json:"attachment,omitempty"`
}

type PostMessageResponse struct {
	Route        core.Route     `json:"route"`
	Gate         core.Gate      `json:"gate,omitempty"`
	SessionID    string         `json:"session_id"`
	UserMessage  store.Message  `json:"user_message"`
	ModelMessage *store.Message `json:"model_message,omitempty"`
}

func newPostMessageResponse(res core.SendResult) PostMessageResponse {
	return PostMessageResponse{
		Route:        res.Route,
		Gate:         res.Decision.Gate,
		SessionID:    res.SessionID,
		UserMessage:  res.UserMessage,
		ModelMessage: res.ModelMessage,
	}
}

// PostMessageHandler answers with JSON once the model message is final, or
// with an event stream when the client accepts text/event-stream. The send
// runs detached from the request so a dropped connection does not abandon a
// half-written model message.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.chatService.MaxEncodedAttachmentBytes()+messageBodySlack)
	var req PostMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := context.WithoutCancel(r.Context())

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.streamMessage(ctx, w, r, req)
		return
	}

	res, err := h.chatService.Send(ctx, core.SendRequest{Text: req.Text, Attachment: req.Attachment})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Decision.Admitted {
		h.writeError(w, r, res.Decision.Reason)
		return
	}
	writeJSON(w, http.StatusOK, newPostMessageResponse(res))
}

func (h *APIHandler) UploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "A multipart file field named \"file\" is required")
		return
	}
	defer file.Close()

	att, err := h.chatService.IngestAttachment(header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (h *APIHandler) EditMediaHandler(w http.ResponseWriter, r *http.Request) {
	var edits store.MediaEdits
	if !decodeBody(w, r, &edits) {
		return
	}
	err := h.chatService.EditMedia(chi.URLParam(r, "sessionID"), chi.URLParam(r, "messageID"), edits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type planResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Price       string `json:"price"`
	AmountMinor int64  `json:"amount"`
}

func (h *APIHandler) PlansHandler(w http.ResponseWriter, r *http.Request) {
	plans := make([]planResponse, 0, len(core.Plans))
	for _, p := range core.Plans {
		plans = append(plans, planResponse{ID: p.ID, Label: p.Label, Price: p.Price.StringFixed(2), AmountMinor: p.MinorUnits()})
	}
	writeJSON(w, http.StatusOK, plans)
}

type CheckoutRequest struct {
	Plan string `json:"plan"`
}

func (h *APIHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.chatService.StartCheckout(r.Context(), req.Plan)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type CompleteCheckoutRequest struct {
	PaymentID string `json:"payment_id"`
}

func (h *APIHandler) CompleteCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CompleteCheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.chatService.CompleteCheckout(r.Context(), chi.URLParam(r, "orderID"), req.PaymentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, _ := h.chatService.Profile()
	writeJSON(w, http.StatusOK, user)
}
