// Package api exposes the spec service over HTTP.
//
// Routes:
//
//	POST /api/generate            create a spec from a goal
//	GET  /api/history             newest specs first
//	GET  /api/spec/{id}           one spec
//	GET  /api/spec/{id}/markdown  markdown export
//	PUT  /api/spec/{id}           replace tasks and/or stories
//	GET  /api/health              liveness + database check
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/templates"
	"github.com/omjikush09/aggroso/internal/validate"
)

// SpecService is the subset of service.Service the handlers need.
type SpecService interface {
	Generate(ctx context.Context, in specs.GenerateInput) (*specs.Specification, error)
	History(ctx context.Context) ([]specs.Specification, error)
	Get(ctx context.Context, id string) (*specs.Specification, error)
	Update(ctx context.Context, id string, p specs.UpdatePayload) (*specs.Specification, error)
	Health(ctx context.Context) service.HealthReport
}

var _ SpecService = (*service.Service)(nil)

// Options configures the router.
type Options struct {
	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the spec API.
type Handler struct {
	svc       SpecService
	validator *validate.Validator
	renderer  *templates.Renderer
	logger    *slog.Logger
	maxBody   int64
}

// NewRouter builds the chi router with middleware and all routes mounted.
func NewRouter(svc SpecService, opts Options) (http.Handler, error) {
	v, err := validate.New()
	if err != nil {
		return nil, err
	}
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{
		svc:       svc,
		validator: v,
		renderer:  renderer,
		logger:    logger,
		maxBody:   maxBody,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(origins))

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.generate)
		r.Get("/history", h.history)
		r.Get("/health", h.health)
		r.Get("/spec/{id}", h.getSpec)
		r.Put("/spec/{id}", h.updateSpec)
		r.Get("/spec/{id}/markdown", h.markdown)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r, nil
}
