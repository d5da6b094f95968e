package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/course-identity-service/internal/service"
)

type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "response encode failed", "error", err, "path", r.URL.Path)
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	JSON(w, r, status, ErrorBody{Success: false, Message: message, Code: code})
}

// FromError renders err through the service error taxonomy. Anything that is
// not a *service.Error is logged and reported as a bare 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr, ok := service.AsError(err)
	if !ok {
		slog.ErrorContext(r.Context(), "unhandled error", "error", err, "method", r.Method, "path", r.URL.Path)
		Error(w, r, http.StatusInternalServerError, string(service.KindInternal), "internal server error")
		return
	}
	status := svcErr.Status()
	message := svcErr.Message
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		message = "internal server error"
	}
	if message == "" {
		message = http.StatusText(status)
	}
	Error(w, r, status, string(svcErr.Kind), message)
}
