package httpadapter

import (
	"net/http"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func mapErrorToHTTPStatus(err error) int {
	switch domain.KindOf(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "rate_limited":
		return http.StatusTooManyRequests
	case "network_error":
		return http.StatusServiceUnavailable
	case "timeout_error":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to its status and wire code. Client errors carry the
// error text; server-side causes are logged and replaced by a generic detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	kind := domain.KindOf(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		requestLogger(r.Context()).Error("http_handler_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind,
			"error", err,
		)
		detail = serverDetail(status)
	}
	writeJSON(w, status, errorResponse{Error: kind, Detail: detail})
}

func serverDetail(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "upstream service unavailable"
	case http.StatusGatewayTimeout:
		return "upstream service timed out"
	default:
		return "internal server error"
	}
}
