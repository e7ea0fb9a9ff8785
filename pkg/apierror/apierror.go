package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// FromResponse builds an APIError for a non-2xx answer of the remote API.
// The message is taken from the body when the server supplied one, either as
// plain text or as a JSON object carrying "message" or "error"; otherwise
// fallback is used.
func FromResponse(status int, body []byte, fallback string) *APIError {
	message := messageFromBody(body)
	if message == "" {
		message = fallback
	}

	return &APIError{
		Code:       CodeForStatus(status),
		Message:    message,
		HTTPStatus: status,
	}
}

// Rejected reports whether the remote API refused the request itself (4xx) as
// opposed to failing while serving it.
func (e *APIError) Rejected() bool {
	return e != nil && e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

func CodeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "BAD_REQUEST"
	case status == http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case status == http.StatusForbidden:
		return "FORBIDDEN"
	case status == http.StatusNotFound:
		return "NOT_FOUND"
	case status == http.StatusConflict:
		return "CONFLICT"
	case status == http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case status >= 500:
		return "UPSTREAM_ERROR"
	default:
		return "REQUEST_FAILED"
	}
}

func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var parsed struct {
			Message string          `json:"message"`
			Error   json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			if parsed.Message != "" {
				return parsed.Message
			}
			return errorField(parsed.Error)
		}
	}

	return trimmed
}

// errorField accepts both {"error":"text"} and {"error":{"message":"text"}}.
func errorField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Message
	}

	return ""
}
