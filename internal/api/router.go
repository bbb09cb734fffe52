package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamewake/gamewake/internal/auth"
	"github.com/gamewake/gamewake/internal/feed"
)

// RouterDeps are the collaborators the router wires together.
type RouterDeps struct {
	Push     *PushHandler
	Verifier *auth.Verifier
	Hub      *feed.Hub
	Registry *prometheus.Registry

	// StaticDir serves the PWA assets (service worker, registration
	// script). Empty disables static file serving.
	StaticDir string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Live delivery feed for the ops dashboard
	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.HandleWebSocket)
	}

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", deps.Push.HealthHandler())

		// Every push route, the key lookup included, requires a bearer
		// credential.
		r.Route("/push", func(r chi.Router) {
			r.Use(RequireAuth(deps.Verifier))
			r.Get("/vapid-public-key", deps.Push.VAPIDPublicKey)
			r.Post("/subscribe", deps.Push.Subscribe)
			r.Delete("/unsubscribe", deps.Push.Unsubscribe)
			r.Post("/send", deps.Push.Send)
		})
	})

	// Serve PWA static files (service worker, registration script)
	if deps.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(deps.StaticDir))
		r.Handle("/*", fileServer)
	}

	return r
}
