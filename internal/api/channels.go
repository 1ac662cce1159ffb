package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/realtime"
	"github.com/RedHatInsights/console-link/internal/router"

	"github.com/gorilla/mux"
	"github.com/redhatinsights/platform-go-middlewares/v2/request_id"
	"github.com/sirupsen/logrus"
)

type RouterLocator interface {
	GetRouter(resource string, id string) *router.Router
}

// RouterMap is a RouterLocator over a fixed set of channels, keyed by channel key.
type RouterMap map[string]*router.Router

func (m RouterMap) GetRouter(resource string, id string) *router.Router {
	return m[realtime.Key(resource, id)]
}

type ChannelServer struct {
	channels  realtime.ChannelLocator
	routers   RouterLocator
	router    *mux.Router
	urlPrefix string
}

func NewChannelServer(channels realtime.ChannelLocator, routers RouterLocator, r *mux.Router, urlPrefix string) *ChannelServer {
	return &ChannelServer{
		channels:  channels,
		routers:   routers,
		router:    r,
		urlPrefix: urlPrefix,
	}
}

func (s *ChannelServer) Routes() {
	subRouter := s.router.PathPrefix(s.urlPrefix + "/channels").Subrouter()
	subRouter.Use(logger.AccessLoggerMiddleware)

	subRouter.HandleFunc("", s.handleChannelListing()).Methods(http.MethodGet)
	subRouter.HandleFunc("/{resource}/{id}", s.handleChannelStatus()).Methods(http.MethodGet)
	subRouter.HandleFunc("/{resource}/{id}/history", s.handleHistory()).Methods(http.MethodGet)
	subRouter.HandleFunc("/{resource}/{id}/events", s.handleEventStream()).Methods(http.MethodGet)
	subRouter.HandleFunc("/{resource}/{id}/reopen", s.handleReopen()).Methods(http.MethodPost)
}

type channelListResponse struct {
	Channels []realtime.Status `json:"channels"`
	Count    int               `json:"count"`
}

type historyResponse struct {
	Channel  string            `json:"channel"`
	Capacity int               `json:"capacity"`
	Messages []router.Envelope `json:"messages"`
}

func (s *ChannelServer) handleChannelListing() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		statuses := []realtime.Status{}
		for _, channel := range s.channels.GetAllChannels(req.Context()) {
			statuses = append(statuses, channel.Status())
		}

		writeJSONResponse(w, http.StatusOK, channelListResponse{Channels: statuses, Count: len(statuses)})
	}
}

func (s *ChannelServer) handleChannelStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		channel := s.lookup(req)
		if channel == nil {
			writeErrorResponse(w, http.StatusNotFound, "channel not found")
			return
		}

		writeJSONResponse(w, http.StatusOK, channel.Status())
	}
}

func (s *ChannelServer) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)

		rtr := s.routers.GetRouter(vars["resource"], vars["id"])
		if rtr == nil {
			writeErrorResponse(w, http.StatusNotFound, "channel not found")
			return
		}
		history := rtr.History()

		writeJSONResponse(w, http.StatusOK, historyResponse{
			Channel:  realtime.Key(vars["resource"], vars["id"]),
			Capacity: history.Capacity(),
			Messages: history.Entries(),
		})
	}
}

// handleEventStream relays every envelope the channel accepts from now on as a
// server-sent event.
func (s *ChannelServer) handleEventStream() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)

		rtr := s.routers.GetRouter(vars["resource"], vars["id"])
		if rtr == nil {
			writeErrorResponse(w, http.StatusNotFound, "channel not found")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeErrorResponse(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		log := logger.Log.WithFields(logrus.Fields{
			"channel":    rtr.Channel(),
			"request_id": request_id.GetReqID(req.Context()),
		})

		envelopes, unsubscribe := rtr.Subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		log.Debug("Event stream opened")
		defer log.Debug("Event stream closed")

		for {
			select {
			case <-req.Context().Done():
				return
			case envelope, ok := <-envelopes:
				if !ok {
					return
				}

				data, err := json.Marshal(envelope)
				if err != nil {
					log.WithFields(logrus.Fields{"error": err, "envelope_id": envelope.ID}).Error("Unable to encode envelope")
					continue
				}

				if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", envelope.ID, envelope.Type, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func (s *ChannelServer) handleReopen() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		channel := s.lookup(req)
		if channel == nil {
			writeErrorResponse(w, http.StatusNotFound, "channel not found")
			return
		}

		log := logger.Log.WithFields(logrus.Fields{
			"channel":    channel.Key(),
			"request_id": request_id.GetReqID(req.Context()),
		})

		if err := channel.Open(); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("Unable to reopen channel")
			status := http.StatusInternalServerError
			if errors.Is(err, realtime.ErrChannelNotStarted) {
				status = http.StatusConflict
			}
			writeErrorResponse(w, status, err.Error())
			return
		}

		log.Info("Reopened channel on request")
		writeJSONResponse(w, http.StatusAccepted, channel.Status())
	}
}

func (s *ChannelServer) lookup(req *http.Request) *realtime.Channel {
	vars := mux.Vars(req)
	return s.channels.GetChannel(req.Context(), vars["resource"], vars["id"])
}
