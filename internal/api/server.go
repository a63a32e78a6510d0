// Package api exposes the chat, scoring and document operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/chat"
	"github.com/spigell/resume-screener/internal/documents"
	"github.com/spigell/resume-screener/internal/logger"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 60 * time.Second
	shutdownTimeout     = 10 * time.Second
	maxBodyBytes        = 12 << 20
)

// Config configures the HTTP server.
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// DevMode adds internal error details to error responses.
	DevMode bool
}

// Server routes HTTP requests to the chat orchestrator, the match scorer and
// the document service.
type Server struct {
	cfg       Config
	chat      *chat.Orchestrator
	scorer    ai.Scorer
	documents *documents.Service
	logger    *zap.Logger
	mux       *http.ServeMux
}

func New(cfg Config, orchestrator *chat.Orchestrator, scorer ai.Scorer, docs *documents.Service, log *zap.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":3001"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	s := &Server{
		cfg:       cfg,
		chat:      orchestrator,
		scorer:    scorer,
		documents: docs,
		logger:    logger.ForComponent(log, "api"),
		mux:       http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/history/{sessionId}", s.handleHistory)
	s.mux.HandleFunc("GET /api/chat/sessions", s.handleSessions)
	s.mux.HandleFunc("DELETE /api/chat/session/{sessionId}", s.handleDeleteSession)
	s.mux.HandleFunc("PATCH /api/chat/session/{sessionId}/title", s.handleRenameSession)

	s.mux.HandleFunc("POST /api/match/score", s.handleScore)

	s.mux.HandleFunc("POST /api/upload/{docType}", s.handleUpload)
	s.mux.HandleFunc("GET /api/upload/{docType}/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /api/upload/{docType}/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("DELETE /api/upload/{docType}/all", s.handleDeleteAllDocuments)
	s.mux.HandleFunc("DELETE /api/upload/all", s.handlePurge)
}

// Handler returns the routed handler wrapped with the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.requestLogger(cors(s.mux)))
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
