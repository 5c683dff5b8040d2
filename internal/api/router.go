package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(apiHandler *APIHandler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(apiHandler.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/profile", apiHandler.ProfileHandler)
			r.Post("/logout", apiHandler.LogoutHandler)

			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions/new", apiHandler.NewSessionHandler)
			r.Get("/sessions/{sessionID}", apiHandler.GetSessionHandler)
			r.Post("/sessions/{sessionID}/select", apiHandler.SelectSessionHandler)
			r.Delete("/sessions/{sessionID}", apiHandler.DeleteSessionHandler)
			r.Put("/sessions/{sessionID}/messages/{messageID}/edits", apiHandler.EditMediaHandler)

			r.Put("/mode", apiHandler.SetModeHandler)
			r.With(apiHandler.RateLimit).Post("/messages", apiHandler.PostMessageHandler)
			r.Post("/attachments", apiHandler.UploadAttachmentHandler)

			r.Get("/plans", apiHandler.PlansHandler)
			r.Post("/checkout", apiHandler.CheckoutHandler)
			r.Post("/checkout/{orderID}/complete", apiHandler.CompleteCheckoutHandler)
		})
	})

	return r
}
