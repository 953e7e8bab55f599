package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/corpus"
	"github.com/trainguard/img-sentinel/internal/logger"
	"github.com/trainguard/img-sentinel/internal/metrics"
	"github.com/trainguard/img-sentinel/internal/pipeline"
	"github.com/trainguard/img-sentinel/internal/security"
	"github.com/trainguard/img-sentinel/internal/web"
	"github.com/trainguard/img-sentinel/internal/websocket"
)

// Server is the HTTP surface of the analysis service.
type Server struct {
	config       *config.Config
	logger       *logger.Logger
	orchestrator *pipeline.Orchestrator
	index        *corpus.Index
	rateLimiter  *security.RateLimiter
	router       *mux.Router
	server       *http.Server
	wsHub        *websocket.Hub

	startTime     time.Time
	totalAnalyses atomic.Int64
}

// New creates the server around an already-initialized orchestrator and
// corpus index.
func New(cfg *config.Config, log *logger.Logger, orchestrator *pipeline.Orchestrator, index *corpus.Index) *Server {
	wsHub := websocket.NewHub(&cfg.WebSocket, log.WithComponent("websocket").Logger)

	s := &Server{
		config:       cfg,
		logger:       log.WithComponent("server"),
		orchestrator: orchestrator,
		index:        index,
		rateLimiter:  security.NewRateLimiter(&cfg.RateLimit),
		router:       mux.NewRouter(),
		wsHub:        wsHub,
		startTime:    time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler()).Methods("GET")
	}

	// Analysis API
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	if s.config.Metrics.Enabled {
		api.Use(metrics.Middleware)
	}
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/analyze/batch", s.handleAnalyzeBatch).Methods("POST")
}

// Start starts the HTTP server and the WebSocket hub.
func (s *Server) Start() error {
	s.logger.Info("Starting img-sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("corpus_entries", s.index.Size()),
		zap.Int("corpus_dimensions", s.index.Dimensions()),
	)

	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping img-sentinel server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
