package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/auth"
	"github.com/snapvault/snapvault/internal/server/services"
)

// Server wires the handlers into a chi router and owns the http.Server
// lifecycle.
type Server struct {
	address string
	handler *Handler
	tokens  *auth.TokenIssuer
	logger  logging.Logger
}

// NewServer constructs a Server bound to address.
func NewServer(address string, handler *Handler, tokens *auth.TokenIssuer, logger logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		tokens:  tokens,
		logger:  logger.With("module", "http_server"),
	}
}

// Router assembles the route tree. Auth endpoints, /healthz and /metrics are
// public; everything under /api besides auth requires a valid access token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handler.register)
			r.Post("/login", s.handler.login)
			r.Post("/refresh", s.handler.refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.tokens))

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", s.handler.initiateUpload)
				r.Get("/{id}/status", s.handler.uploadStatus)
				r.Post("/{id}/complete", s.handler.completeUpload)
				r.Post("/{id}/fail", s.handler.failUpload)
			})

			r.Route("/batches", func(r chi.Router) {
				r.Post("/", s.handler.createBatch)
				r.Get("/{id}", s.handler.batchStatus)
				r.Post("/{id}/abort", s.handler.abortBatch)
			})

			r.Route("/photos", func(r chi.Router) {
				r.Get("/", s.handler.listPhotos)
				r.Delete("/{id}", s.handler.deletePhoto)
				r.Post("/{id}/tags", s.handler.editTags(services.TagOpAdd))
				r.Delete("/{id}/tags", s.handler.editTags(services.TagOpRemove))
				r.Put("/{id}/tags", s.handler.editTags(services.TagOpReplace))
			})
		})
	})

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
