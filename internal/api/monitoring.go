package api

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/RedHatInsights/console-link/internal/config"
	"github.com/RedHatInsights/console-link/internal/csrf"
	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokenReporter reports whether a csrf token has been acquired yet.
type TokenReporter interface {
	Published() (csrf.Token, bool)
}

type MonitoringServer struct {
	router *mux.Router
	config *config.Config
	tokens TokenReporter
}

func NewMonitoringServer(r *mux.Router, cfg *config.Config, tokens TokenReporter) *MonitoringServer {
	return &MonitoringServer{
		router: r,
		config: cfg,
		tokens: tokens,
	}
}

func (s *MonitoringServer) Routes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/liveness", s.handleLiveness()).Methods(http.MethodGet)
	s.router.HandleFunc("/readiness", s.handleReadiness()).Methods(http.MethodGet)

	if s.config.Profile {
		logger.Log.Warn("WARNING: Enabling the profiler endpoint!!")
		s.router.PathPrefix("/debug").Handler(http.DefaultServeMux)
	}
}

func (s *MonitoringServer) handleLiveness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// Ready once the first csrf token has been published; mutating requests sent before
// that would go out without the header.
func (s *MonitoringServer) handleReadiness() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if _, published := s.tokens.Published(); !published {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
