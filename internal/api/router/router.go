// Package router assembles the HTTP surface: public health and metrics, the
// v1 turn/snapshot/loop API, and the JWT-guarded admin group.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rapportlabs/rapport/internal/http/handlers"
	httpmiddleware "github.com/rapportlabs/rapport/internal/http/middleware"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Turns    *handlers.TurnsHandler
	Snapshot *handlers.SnapshotHandler
	Loops    *handlers.LoopsHandler
	Admin    *handlers.AdminHandler

	MetricsHandler http.Handler

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// RateLimitPerSecond caps per-IP request rate on the v1 API; zero
	// disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			burst := cfg.RateLimitBurst
			if burst <= 0 {
				burst = int(cfg.RateLimitPerSecond) + 1
			}
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, burst))
		}

		if cfg.Turns != nil {
			v1.Post("/turns", cfg.Turns.ProcessTurn)
		}
		v1.Route("/subjects/{subjectID}", func(subj chi.Router) {
			if cfg.Snapshot != nil {
				subj.Get("/snapshot", cfg.Snapshot.GetSnapshot)
			}
			if cfg.Loops != nil {
				subj.Post("/loops/resolve-by-topic", cfg.Loops.ResolveTopic)
				subj.Post("/loops/dismiss-by-topic", cfg.Loops.DismissTopic)
				subj.Route("/loops/{loopID}", func(loop chi.Router) {
					loop.Post("/resolve", cfg.Loops.Resolve)
					loop.Post("/dismiss", cfg.Loops.Dismiss)
				})
			}
		})
	})

	if cfg.Admin != nil && cfg.AdminJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Post("/subjects/{subjectID}/reset", cfg.Admin.ResetSubject)
			admin.Post("/repair", cfg.Admin.Repair)
		})
	}

	return r
}
