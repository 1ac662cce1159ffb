package utils

import (
	"context"
	"net/http"
	"os"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

func StartHTTPServer(addr, name string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		logger.Log.Infof("Starting %s server:  %s", name, addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Log.WithFields(logrus.Fields{"error": err}).Fatalf("%s server error", name)
		}
	}()

	return srv
}

func ShutdownHTTPServer(ctx context.Context, name string, srv *http.Server) {
	logger.Log.Infof("Shutting down %s server", name)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Errorf("Error shutting down %s server", name)
	}
}

// GetHostname falls back to the given name when the hostname cannot be determined.
func GetHostname(fallback string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		logger.Log.WithFields(logrus.Fields{"error": err}).Info("Error getting hostname")
		return fallback
	}

	return name
}
