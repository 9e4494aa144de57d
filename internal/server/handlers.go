package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

const maxRequestBytes = 1 << 20

// askRequest is the body of POST /api/v1/ask.
type askRequest struct {
	Question string `json:"question"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// healthResponse reports whether questions can be answered.
type healthResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	VectorDBLoaded bool   `json:"vector_db_loaded"`
	Entries        int    `json:"entries"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Textbook Q&A API",
		"version": Version,
		"endpoints": map[string]string{
			"health":  "/api/v1/health",
			"ask":     "/api/v1/ask (POST)",
			"history": "/api/v1/history",
			"ws":      "/api/v1/ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.service.Health()
	resp := healthResponse{
		Status:         "healthy",
		Message:        "Service is running",
		VectorDBLoaded: h.Ready,
		Entries:        h.Entries,
	}
	if !h.Ready {
		resp.Status = "degraded"
		resp.Message = "Vector database not loaded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, apperr.InvalidInput("ask", "invalid request body: "+err.Error()))
		return
	}

	answer, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toErrorResponse(err error) errorResponse {
	var e *apperr.Error
	if errors.As(err, &e) {
		return errorResponse{Error: e.Reason(), Detail: e.Detail()}
	}
	return errorResponse{Error: string(apperr.KindInternal), Detail: err.Error()}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, status, toErrorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
