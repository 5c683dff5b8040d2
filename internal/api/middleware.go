package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"radzz.ai/chat-orchestrator/internal/auth"
)

type ctxKey int

const emailKey ctxKey = iota

func emailFrom(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

// JWTAuthMiddleware admits requests carrying a token issued for the profile
// currently signed in.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		email, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, ok := h.chatService.Profile()
		if !ok || !strings.EqualFold(user.Email, email) {
			writeMessage(w, http.StatusUnauthorized, "Not signed in")
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 3
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit throttles each client, keyed by signed-in email and falling back
// to the remote address.
func (h *APIHandler) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := emailFrom(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}
		if !h.limiter.Allow(key) {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "Too many messages. Slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger is middleware.Logger with zap fields instead of a log line.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			defer func() {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(started)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
