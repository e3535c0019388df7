package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/http/middleware"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/scheduler"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	scheduler *scheduler.Scheduler
	uploadDir string
}

func NewAPI(s *scheduler.Scheduler, uploadDir string) *API {
	return &API{
		scheduler: s,
		uploadDir: uploadDir,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}
