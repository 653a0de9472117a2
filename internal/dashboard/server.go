// Package dashboard serves the latest result table, run status and metrics over HTTP.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"PairSentinel/internal/metrics"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

// Pipeline is the part of the scheduler the dashboard drives.
type Pipeline interface {
	LastStatus() *screener.Status
	Running() bool
	TriggerAsync(ctx context.Context) error
}

type ctxKey struct{}

// Server is the dashboard HTTP server.
type Server struct {
	router     *mux.Router
	server     *http.Server
	recorder   recorder.Recorder
	pipeline   Pipeline
	metrics    *metrics.Registry
	pricesPath string
	topN       int
}

// NewServer wires routes and middleware. pipeline may be nil, which disables
// run triggering.
func NewServer(addr string, rec recorder.Recorder, p Pipeline, m *metrics.Registry, pricesPath string, topN int) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		recorder:   rec,
		pipeline:   p,
		metrics:    m,
		pricesPath: pricesPath,
		topN:       topN,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pairs", s.pairs).Methods(http.MethodGet)
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/run", s.run).Methods(http.MethodPost)

	s.router.HandleFunc("/download/pairs.csv", s.downloadPairs).Methods(http.MethodGet)
	s.router.HandleFunc("/download/prices.json", s.downloadPrices).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(ctxKey{}).(string)
		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("dashboard listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down dashboard")
	return s.server.Shutdown(ctx)
}
