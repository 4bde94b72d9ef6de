// Package web exposes the matching engine to the surrounding draw-management
// application over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ledgerock/drawmatch/internal/engine"
	"github.com/ledgerock/drawmatch/internal/service"
	"github.com/ledgerock/drawmatch/internal/training"
)

// Server hosts the HTTP API.
type Server struct {
	httpServer *http.Server
	storage    service.Storage
	engine     *engine.MatchingEngine
	capturer   *training.Capturer
}

// NewServer creates an HTTP server for the matching API.
func NewServer(addr string, storage service.Storage, matcher *engine.MatchingEngine, capturer *training.Capturer) *Server {
	s := &Server{
		storage:  storage,
		engine:   matcher,
		capturer: capturer,
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/invoices/{id}/match", s.handleMatchInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/{id}/corrections", s.handleCorrection).Methods(http.MethodPost)
	api.HandleFunc("/draws/{id}/fund", s.handleFundDraw).Methods(http.MethodPost)
	api.HandleFunc("/vendors/{name}/history", s.handleVendorHistory).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// loggingMiddleware logs each request with timing.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
