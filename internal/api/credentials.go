package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RedHatInsights/console-link/internal/csrf"
	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

type CredentialAcquirer interface {
	Acquire(ctx context.Context) (csrf.Token, error)
	LastAcquired() (time.Time, bool)
}

type CredentialServer struct {
	acquirer  CredentialAcquirer
	tokens    TokenReporter
	router    *mux.Router
	urlPrefix string
}

func NewCredentialServer(acquirer CredentialAcquirer, tokens TokenReporter, r *mux.Router, urlPrefix string) *CredentialServer {
	return &CredentialServer{
		acquirer:  acquirer,
		tokens:    tokens,
		router:    r,
		urlPrefix: urlPrefix,
	}
}

func (s *CredentialServer) Routes() {
	subRouter := s.router.PathPrefix(s.urlPrefix + "/credentials").Subrouter()
	subRouter.Use(logger.AccessLoggerMiddleware)

	subRouter.HandleFunc("", s.handleCredentialStatus()).Methods(http.MethodGet)
	subRouter.HandleFunc("/renew", s.handleRenew()).Methods(http.MethodPost)
}

type credentialStatusResponse struct {
	TokenPublished bool       `json:"token_published"`
	LastAcquired   *time.Time `json:"last_acquired,omitempty"`
}

func (s *CredentialServer) status() credentialStatusResponse {
	_, published := s.tokens.Published()
	response := credentialStatusResponse{TokenPublished: published}

	if lastAcquired, ok := s.acquirer.LastAcquired(); ok {
		response.LastAcquired = &lastAcquired
	}

	return response
}

func (s *CredentialServer) handleCredentialStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSONResponse(w, http.StatusOK, s.status())
	}
}

func (s *CredentialServer) handleRenew() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		log := logger.Log.WithFields(logrus.Fields{"request_id": request_id.GetReqID(req.Context())})

		_, err := s.acquirer.Acquire(req.Context())
		switch {
		case err == nil:
			log.Info("Renewed the csrf token on request")
			writeJSONResponse(w, http.StatusOK, s.status())
		case errors.Is(err, csrf.ErrAcquisitionExhausted):
			log.WithFields(logrus.Fields{"error": err}).Warn("Unable to renew the csrf token")
			writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled):
			writeErrorResponse(w, http.StatusServiceUnavailable, "request cancelled")
		default:
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to renew the csrf token")
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		}
	}
}
