package api

import (
	"encoding/json"
	"net/http"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func writeJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to encode payload!")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, detail string) {
	writeJSONResponse(w, status, errorResponse{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
