package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radzz.ai/chat-orchestrator/internal/auth"
	"radzz.ai/chat-orchestrator/internal/config"
	"radzz.ai/chat-orchestrator/internal/core"
	"radzz.ai/chat-orchestrator/internal/provider/providertest"
	"radzz.ai/chat-orchestrator/internal/store"
)

func TestMain(m *testing.M) {
	config.AppConfig.JWTSecret = "api-test-secret"
	os.Exit(m.Run())
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	provider *providertest.Fake
	token    string
}

type serverOpts struct {
	trials    core.TrialDefaults
	sendRPS   float64
	sendBurst int
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	if opts.sendRPS == 0 {
		opts.sendRPS, opts.sendBurst = 1000, 1000
	}
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	metrics := core.NewMetrics(reg)

	adapter := store.NewAdapter(store.NewMemoryStore(), log)
	sessions := core.NewSessionStore(adapter.LoadSessions())
	profiles := core.NewProfileStore(adapter, log)
	gate := core.NewEntitlementGate(profiles, metrics, log)
	fake := &providertest.Fake{Fragments: []string{"Hel", "lo"}}
	orch := core.NewOrchestrator(sessions, gate, fake, core.SimulatedMedia{}, metrics, log)
	svc := core.NewChatService(sessions, profiles, orch, core.AttachmentIngester{MaxBytes: 8},
		core.NewPendingCheckout("rzp_test", "INR", log), opts.trials, log)

	return &testServer{
		t:        t,
		handler:  NewRouter(NewAPIHandler(svc, opts.sendRPS, opts.sendBurst, log), reg),
		provider: fake,
	}
}

func (s *testServer) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(email string) store.User {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/login", LoginRequest{Mode: "signup", Name: "Ada", Email: email, Password: "hunter22"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	s.token = resp.Token
	return resp.User
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	rec := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLoginAndProfile(t *testing.T) {
	s := newTestServer(t, serverOpts{trials: core.TrialDefaults{Premium: 6, Study: 49}})

	rec := s.do(http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/login", LoginRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	user := s.login("ada@example.com")
	assert.Equal(t, 6, user.PremiumTrials)

	rec = s.do(http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, decode[store.User](t, rec))

	rec = s.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenForReplacedProfileIsRejected(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")
	stale := s.token
	s.login("grace@example.com")

	s.token = stale
	rec := s.do(http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateJWT("GRACE@example.com")
	require.NoError(t, err)
	s.token = token
	rec = s.do(http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostMessageJSON(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PostMessageResponse](t, rec)
	assert.Equal(t, core.RouteStream, resp.Route)
	require.NotNil(t, resp.ModelMessage)
	assert.Equal(t, store.Final("Hello"), resp.ModelMessage.Content)

	rec = s.do(http.MethodGet, "/api/sessions", nil)
	list := decode[ListSessionsResponse](t, rec)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, resp.SessionID, list.Active)
	assert.Equal(t, 3, list.Sessions[0].Messages)

	rec = s.do(http.MethodGet, "/api/sessions/"+resp.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", decode[store.ChatSession](t, rec).Title)

	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageDenied(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "generate an image of a cat"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.True(t, body.Upgrade)
	assert.Equal(t, "All premium trials used. Please upgrade for unlimited access.", body.Error)
}

func TestPostMessageProviderFailure(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")
	s.provider.StreamErr = io.ErrUnexpectedEOF

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Connection error. Please check your network and try again.", decode[errorResponse](t, rec).Error)
}

func TestPostMessageSSE(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi"}, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	var events []string
	for _, line := range strings.Split(body, "\n") {
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{"session", "message", "message", "fragment", "fragment", "resolved", "done"}, events)
	assert.Contains(t, body, `"fragment":"Hel"`)
}

func TestPostMessageSSEDeniedIsPlainJSON(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "generate an image"}, "Accept", "text/event-stream")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestPostMessageRateLimited(t *testing.T) {
	s := newTestServer(t, serverOpts{sendRPS: 0.001, sendBurst: 1})
	s.login("ada@example.com")

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "one"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "two"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestSetMode(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	rec := s.do(http.MethodPut, "/api/mode", SetModeRequest{Mode: "warp_speed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/mode", SetModeRequest{Mode: "lightning"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lightning", string(decode[ListSessionsResponse](t, s.do(http.MethodGet, "/api/sessions", nil)).Mode))
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/sessions/missing/select", nil).Code)

	first := decode[PostMessageResponse](t, s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "first"}))
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/sessions/new", nil).Code)
	second := decode[PostMessageResponse](t, s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "second"}))
	assert.NotEqual(t, first.SessionID, second.SessionID)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/sessions/"+first.SessionID+"/select", nil).Code)
	rec := s.do(http.MethodDelete, "/api/sessions/"+first.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"active": second.SessionID}, decode[map[string]string](t, rec))
}

func TestEditMediaRoute(t *testing.T) {
	s := newTestServer(t, serverOpts{trials: core.TrialDefaults{Premium: 1}})
	s.login("ada@example.com")

	res := decode[PostMessageResponse](t, s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "generate an image of a boat"}))
	require.NotNil(t, res.ModelMessage)
	path := "/api/sessions/" + res.SessionID + "/messages/" + res.ModelMessage.ID + "/edits"

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, path, store.MediaEdits{Filter: "blur"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, path, store.MediaEdits{Filter: "grayscale"}).Code)

	sess := decode[store.ChatSession](t, s.do(http.MethodGet, "/api/sessions/"+res.SessionID, nil))
	assert.Equal(t, "grayscale", sess.Messages[2].Media.Edits.Filter)
}

func TestUploadAttachment(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	upload := func(content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "note.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return s.do(http.MethodPost, "/api/attachments", &buf, "Content-Type", mw.FormDataContentType())
	}

	rec := upload("hello")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	att := decode[store.Attachment](t, rec)
	assert.Equal(t, "note.txt", att.Name)
	assert.Equal(t, int64(5), att.Size)
	assert.True(t, strings.HasPrefix(att.URL, "data:"))

	rec = upload("this is far too long")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.do(http.MethodPost, "/api/attachments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageInlineAttachmentCap(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")
	inline := func(content string) *store.Attachment {
		return &store.Attachment{Name: "a.txt", Size: 1, URL: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(content))}
	}

	rec := s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi", Attachment: inline(strings.Repeat("a", 4096))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "That file is too large to attach.", decode[errorResponse](t, rec).Error)

	// Bodies past the encoded cap are cut off before decoding.
	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi", Attachment: inline(strings.Repeat("a", 128<<10))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi", Attachment: &store.Attachment{Name: "x", URL: "https://example.com/x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, decode[ListSessionsResponse](t, s.do(http.MethodGet, "/api/sessions", nil)).Sessions)

	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi", Attachment: inline("hello")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(5), decode[PostMessageResponse](t, rec).UserMessage.Attachment.Size)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")

	plans := decode[[]planResponse](t, s.do(http.MethodGet, "/api/plans", nil))
	require.Len(t, plans, 2)
	assert.Equal(t, planResponse{ID: "daily", Label: "Daily Pass", Price: "29.00", AmountMinor: 2900}, plans[0])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/checkout", CheckoutRequest{Plan: "weekly"}).Code)

	rec := s.do(http.MethodPost, "/api/checkout", CheckoutRequest{Plan: "daily"})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[core.CheckoutOrder](t, rec)
	assert.Equal(t, "rzp_test", order.Key)

	rec = s.do(http.MethodPost, "/api/checkout/"+order.ID+"/complete", CompleteCheckoutRequest{PaymentID: "pay_1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[store.User](t, rec).IsPremium)

	rec = s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "generate an image"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.login("ada@example.com")
	s.do(http.MethodPost, "/api/messages", PostMessageRequest{Text: "hi"})

	rec := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `radzz_sends_total{route="stream"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(core.ErrSendInProgress))
	assert.Equal(t, http.StatusPaymentRequired, statusFor(core.ErrStudyTrialsExhausted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}
