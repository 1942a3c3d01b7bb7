// Package observability exposes the sync client's Prometheus metrics
// and liveness endpoints over a small HTTP sidecar listener.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server serves /metrics, /healthz, and /readyz for one client
// process.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer creates the observability listener. It does not bind
// until Start.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	// Liveness only says the process is up. Connection state for the
	// push and realtime links is reported through the metrics, not
	// here: a client mid-reconnect is still healthy.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start binds the listener in a goroutine; serve errors are logged,
// never fatal, since observability must not take the sync client down.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting observability listener")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Observability listener error")
		}
	}()
}

// Shutdown gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("addr", s.addr).Msg("Shutting down observability listener")
	return s.server.Shutdown(ctx)
}
