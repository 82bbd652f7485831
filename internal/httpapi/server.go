// Package httpapi serves the question-answering pipeline over HTTP.
//
// The server starts even when the pipeline could not be built. In that
// state /health reports the pipeline as failed and /query answers 503.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ApologyMessage is returned in place of an answer when the pipeline fails
const ApologyMessage = "I encountered an issue processing your query. This could be due to connectivity issues with the knowledge base or AI service. Please try again in a moment."

// Pipeline status values reported by /health
const (
	PipelineOperational = "operational"
	PipelineFailed      = "failed"
)

// Defaults
const (
	DefaultAddr           = ":8000"
	DefaultRequestTimeout = 90 * time.Second
	shutdownTimeout       = 5 * time.Second

	// MaxRequestBytes bounds the body of POST /query
	MaxRequestBytes = 64 << 10
)

// DefaultAllowedOrigins are the development front-end origins
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Invoker answers a single query
type Invoker interface {
	Invoke(ctx context.Context, query string) (string, error)
}

// Config configures a Server
type Config struct {
	Addr           string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
}

// Server is the HTTP front door
type Server struct {
	pipeline Invoker
	cfg      Config
	logger   *slog.Logger
	handler  http.Handler
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the body returned by POST /query
type QueryResponse struct {
	Response string `json:"response"`
}

// HealthResponse is the body returned by GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	RAGPipeline string `json:"rag_pipeline"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewServer creates a server. A nil pipeline puts it in degraded mode.
func NewServer(pipeline Invoker, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /query", s.handleQuery)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	s.handler = corsMiddleware(cfg.AllowedOrigins, loggingMiddleware(logger, mux))
	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address until ctx is cancelled, then
// shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown", "error", err)
		}
	}()

	s.logger.Info("http server starting", "addr", s.cfg.Addr, "pipeline", s.pipelineStatus())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) pipelineStatus() string {
	if s.pipeline == nil {
		return PipelineFailed
	}
	return PipelineOperational
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AIRAC API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Message:     "API is operational",
		RAGPipeline: s.pipelineStatus(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "RAG pipeline is not initialized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Query cannot be empty"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	answer, err := s.pipeline.Invoke(ctx, query)
	if err != nil {
		s.logger.Error("query failed", "query", query, "error", err)
		writeJSON(w, http.StatusOK, QueryResponse{Response: ApologyMessage})
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Response: answer})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
