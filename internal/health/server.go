// Package health exposes the HTTP liveness endpoint used by container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/logging"
)

const (
	pingTimeout       = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
)

// StoreChecker reports whether the backing store answers.
type StoreChecker interface {
	Ping(ctx context.Context) error
}

// Server owns the HTTP server behind GET /healthz.
type Server struct {
	server  *http.Server
	logger  *logrus.Entry
	store   StoreChecker
	started time.Time
}

type status struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Uptime int64  `json:"uptime_seconds"`
}

// NewServer builds the health server listening on the given port.
func NewServer(port int, store StoreChecker, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:  logger,
		store:   store,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe blocks until the server is shut down. A clean shutdown is
// not an error.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := status{
		Status: "ok",
		Uptime: int64(time.Since(s.started).Seconds()),
	}

	if err := s.pingStore(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "error"
		s.logger.WithField("event", "health_store_error").WithError(err).Warn("store ping failed during health check")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("could not encode health response")
	}
}

func (s *Server) pingStore(ctx context.Context) error {
	if s.store == nil {
		return errors.New("store checker is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.store.Ping(pingCtx)
}
