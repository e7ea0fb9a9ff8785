package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"support-portal/internal/model"
)

const defaultPageTimeout = 30 * time.Second

// Timeout bounds page handlers, including the remote calls they make through
// the request context. It buffers the response, so it must not wrap the
// websocket route.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}

	body, _ := json.Marshal(model.APIResponse{
		Error: &model.APIError{Code: "REQUEST_TIMEOUT", Message: "The remote service took too long to answer"},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
