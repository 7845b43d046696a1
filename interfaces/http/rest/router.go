package rest

import (
	"net/http"

	"rndindex/application/commands/bus"
	querybus "rndindex/application/queries/bus"
	"rndindex/interfaces/http/rest/handlers"
	"rndindex/interfaces/http/rest/middleware"
	apperrors "rndindex/pkg/errors"
	"rndindex/pkg/ratelimit"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options toggles optional router features
type Options struct {
	EnableCORS    bool
	EnableTracing bool
	ServiceName   string
	// RebuildLimiter throttles manual rebuilds per client; nil disables it
	RebuildLimiter ratelimit.Limiter
	// Debug exposes error causes and stack traces in error bodies
	Debug bool
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	opts       Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, "/health", "/ready"))
	if rt.opts.EnableTracing {
		router.Use(rt.tracing)
	}

	// CORS configuration
	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	errorHandler := apperrors.NewErrorHandler(rt.logger, rt.opts.Debug)
	versionHandler := handlers.NewVersionHandler(rt.queryBus, errorHandler, rt.logger)
	indexHandler := handlers.NewIndexHandler(rt.commandBus, rt.queryBus, errorHandler, rt.logger)

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", indexHandler.Ready)

	router.Route("/api/rnd", func(r chi.Router) {
		// Index administration
		r.Route("/index", func(r chi.Router) {
			r.Get("/", indexHandler.Status)
			r.Group(func(r chi.Router) {
				if rt.opts.RebuildLimiter != nil {
					r.Use(middleware.RateLimit(rt.opts.RebuildLimiter, "rebuild", errorHandler, rt.logger))
				}
				r.Post("/rebuild", indexHandler.Rebuild)
			})
		})

		// Version lookups
		r.Route("/{source}/{objectType}/{key}/versions", func(r chi.Router) {
			r.Get("/", versionHandler.ListVersions)
			r.Get("/{version}", versionHandler.GetVersion)
		})
	})

	router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errorHandler.HandleStatus(w, req, http.StatusNotFound, "Route not found")
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// tracing opens an X-Ray segment per request
func (rt *Router) tracing(next http.Handler) http.Handler {
	name := rt.opts.ServiceName
	if name == "" {
		name = "rnd-reference-index"
	}
	return xray.Handler(xray.NewFixedSegmentNamer(name), next)
}
