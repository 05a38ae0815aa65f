package web

// errors.go maps import errors to HTTP responses.
//
// The technical error is logged with the request id; the client receives
// the user message from core.MapError together with its code. The status
// follows the code family: input problems are the client's, a busy import
// slot is temporary, everything else is ours.

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/flightlog/internal/core"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	RunID   string `json:"run_id,omitempty"`
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	userMsg := core.MapError(err)
	status := statusFor(userMsg.Code)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
		"run_id", runID,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		RunID:   runID,
	})
}

// statusFor picks the HTTP status for a user message code.
func statusFor(code string) int {
	switch {
	case code == "IMP002":
		return http.StatusServiceUnavailable
	case code == "REQ002":
		return http.StatusGatewayTimeout
	case code == "REQ001":
		return http.StatusRequestTimeout
	case strings.HasPrefix(code, "FILE"), strings.HasPrefix(code, "VAL"), strings.HasPrefix(code, "IMP"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
