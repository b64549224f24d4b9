package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/interfaces/http/rest/handlers"
	"github.com/Sakeeb91/claim-mapper-sub003/interfaces/http/rest/middleware"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/auth"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configure the router
type Options struct {
	EnableCORS         bool
	AllowedOrigins     []string
	Token              string
	RateLimitPerMinute int
	EnableMetrics      bool
	Debug              bool
}

// Router creates and configures the HTTP router
type Router struct {
	commands handlers.CommandSender
	view     handlers.SessionView
	metrics  *observability.Collector
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commands handlers.CommandSender,
	view handlers.SessionView,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commands: commands,
		view:     view,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.EnableMetrics && rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	errs := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)
	var limiter *auth.KeyedLimiter
	if rt.opts.RateLimitPerMinute > 0 {
		limiter = auth.NewKeyedLimiter(rt.opts.RateLimitPerMinute, rt.opts.RateLimitPerMinute/10+1)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.opts.Token, limiter, rt.logger))

		sessionHandler := handlers.NewSessionHandler(rt.commands, rt.view, errs, rt.logger)
		r.Get("/session", sessionHandler.GetStatus)
		r.Post("/session/join", sessionHandler.Join)
		r.Post("/session/leave", sessionHandler.Leave)
		r.Get("/presence", sessionHandler.GetPresence)
		r.Put("/presence/cursor", sessionHandler.UpdateCursor)

		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", sessionHandler.GetConflicts)
			r.Post("/{conflictID}/resolve", sessionHandler.ResolveConflict)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", sessionHandler.GetNotifications)
			r.Delete("/", sessionHandler.ClearNotifications)
			r.Post("/read-all", sessionHandler.MarkAllRead)
			r.Post("/{notificationID}/read", sessionHandler.MarkRead)
		})

		graphHandler := handlers.NewGraphHandler(rt.commands, rt.view, errs, rt.logger)
		r.Get("/graph", graphHandler.GetGraph)
		r.Get("/history", graphHandler.GetHistory)
		r.Route("/links", func(r chi.Router) {
			r.Post("/", graphHandler.CreateLink)
			r.Delete("/{linkID}", graphHandler.DeleteLink)
		})

		r.Route("/claims/{claimID}", func(r chi.Router) {
			claimHandler := handlers.NewClaimHandler(rt.commands, rt.view, errs, rt.logger)
			r.Patch("/", claimHandler.UpdateClaim)
			r.Post("/edit/start", claimHandler.StartEditing)
			r.Post("/edit/stop", claimHandler.StopEditing)
			r.Get("/draft", claimHandler.GetDraft)
			r.Put("/draft", claimHandler.UpdateDraft)
			r.Get("/editors", claimHandler.GetEditors)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once the real-time channel is up
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	status, err := rt.view.Status(ctx)
	if err != nil || !status.Connected {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
