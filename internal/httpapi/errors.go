package httpapi

import (
	"context"
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"medgate/internal/gateway"
	"medgate/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps a gateway error to its HTTP status. Dependency failures are
// checked before fatal generation errors since the former may be wrapped by
// the latter.
func statusFor(err error) int {
	switch {
	case gateway.IsPromptRequired(err):
		return http.StatusBadRequest
	case gateway.IsImageDecode(err):
		return http.StatusUnprocessableEntity
	case gateway.IsTooBusy(err):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case gateway.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case gateway.IsGenerationFatal(err):
		return http.StatusBadGateway
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}
