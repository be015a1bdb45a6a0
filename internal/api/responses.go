package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/revise/internal/session"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Kind      string         `json:"kind,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	State     *session.State `json:"state,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse, err error) {
	body.RequestID = middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status,
			"request_id", body.RequestID, "error", err)
	} else {
		h.log.Debug("request rejected",
			"method", r.Method, "path", r.URL.Path, "status", status,
			"request_id", body.RequestID, "error", err)
	}
	h.respondJSON(w, status, body)
}
