// Package server exposes the scoring engine over HTTP. Routes are served by
// chi with CORS, request IDs and structured request logging; read endpoints
// are fronted by the tiered result cache.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/enrich"
	"github.com/siteatlas/siteatlas/internal/opportunity"
	"github.com/siteatlas/siteatlas/internal/recommend"
	"github.com/siteatlas/siteatlas/internal/rescache"
	"github.com/siteatlas/siteatlas/internal/spatial"
	"github.com/siteatlas/siteatlas/pkg/latlong"
)

const (
	defaultViewportLimit = 500
	maxViewportLimit     = 2000

	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server wires the engine, analyzer and store into HTTP handlers.
type Server struct {
	engine   *recommend.Engine
	analyzer *opportunity.Analyzer
	store    spatial.Store
	caches   *rescache.Tiers
	geo      latlong.Client // optional, nil disables /api/geocode
	merger   *enrich.Merger // optional, nil ignores the enrich flag
	origins  []string
}

// Option configures the server.
type Option func(*Server)

// WithGeocoder enables the geocoding endpoint.
func WithGeocoder(geo latlong.Client) Option {
	return func(s *Server) { s.geo = geo }
}

// WithMerger enables research enrichment for requests that ask for it.
func WithMerger(m *enrich.Merger) Option {
	return func(s *Server) { s.merger = m }
}

// WithAllowedOrigins sets the CORS allow-list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// New builds a Server. caches may be nil, in which case the area list and
// viewport endpoints hit the store on every request.
func New(engine *recommend.Engine, analyzer *opportunity.Analyzer, store spatial.Store, caches *rescache.Tiers, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		analyzer: analyzer,
		store:    store,
		caches:   caches,
		origins:  []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/recommend", s.handleRecommend)
		r.Post("/recommend/point", s.handleRecommendPoint)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/areas", s.handleAreas)
		r.Get("/points", s.handlePoints)
		r.Get("/categories", s.handleCategories)
		r.Get("/cache/stats", s.handleCacheStats)
		if s.geo != nil {
			r.Get("/geocode", s.handleGeocode)
		}
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	}
}
