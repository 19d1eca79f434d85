package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/loworbit/txtrack/internal/transport/httpapi/handler"
	"github.com/loworbit/txtrack/internal/transport/httpapi/middleware"
	"github.com/loworbit/txtrack/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger              *logger.Logger
	AllowedOrigins      []string
	StakingHandler      *handler.StakingHandler
	TransactionHandler  *handler.TransactionHandler
	NotificationHandler *handler.NotificationHandler
	StatsHandler        *handler.StatsHandler
	PropulsionHandler   *handler.PropulsionHandler
	EventsHandler       *handler.EventsHandler
	HealthHandler       *handler.HealthHandler
	JWTMiddleware       func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router. Reads are public; anything that
// submits, dismisses or triggers chain reads requires a JWT when
// JWTMiddleware is set.
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	protect := cfg.JWTMiddleware
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		if h := cfg.StakingHandler; h != nil {
			r.Get("/staking/allowance", h.GetAllowance)
			r.With(protect).Post("/staking/approve", h.Approve)
			r.With(protect).Post("/staking/deposit", h.Deposit)
			r.With(protect).Post("/staking/withdraw", h.Withdraw)
			r.With(protect).Post("/staking/migrate", h.Migrate)
		}

		if h := cfg.TransactionHandler; h != nil {
			r.Get("/transactions/pending", h.GetPending)
			r.Get("/transactions/{id}", h.GetTransaction)
		}

		if h := cfg.NotificationHandler; h != nil {
			r.Get("/notifications", h.GetNotifications)
			r.With(protect).Delete("/notifications/{key}", h.DismissNotification)
		}

		if h := cfg.StatsHandler; h != nil {
			r.Get("/stats", h.GetStats)
			r.With(protect).Post("/stats/refresh", h.RefreshStats)
		}

		if cfg.PropulsionHandler != nil {
			r.Get("/propulsion", cfg.PropulsionHandler.GetPropulsion)
		}

		if cfg.EventsHandler != nil {
			r.Get("/events", cfg.EventsHandler.Stream)
		}
	})

	return r
}
