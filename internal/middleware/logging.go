package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"support-portal/internal/authz"
	"support-portal/internal/session"
)

const requestIDHeader = "X-Request-ID"

// errorBody is a minimal struct used to extract error details from JSON responses.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

const traceContextKey contextKey = "request_trace"

// requestTrace collects what the session gate decided for a request so the
// access log can say who the portal acted as.
type requestTrace struct {
	decision string
	session  string
	userID   int64
	role     string
}

func traceGate(ctx context.Context, decision authz.Decision, snap session.Snapshot) {
	trace, ok := ctx.Value(traceContextKey).(*requestTrace)
	if !ok {
		return
	}

	trace.decision = decision.Kind.String()
	trace.session = snap.State.String()
	if snap.Identity != nil {
		trace.userID = snap.Identity.ID
		trace.role = snap.Identity.RoleLabel()
	}
}

// Logging logs one line per request. Error responses carry the code and
// message of the envelope they wrote.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(logger, next, w, r)
		})
	}
}

func serve(logger *slog.Logger, next http.Handler, w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	w.Header().Set(requestIDHeader, requestID)

	started := time.Now()
	wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
	trace := &requestTrace{}

	next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), traceContextKey, trace)))

	duration := time.Since(started).Milliseconds()

	attrs := []any{
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", wrapped.status,
		"duration_ms", duration,
		"client_ip", extractClientIP(r),
	}

	if trace.decision != "" {
		attrs = append(attrs, "gate", trace.decision, "session", trace.session)
		if trace.role != "" {
			attrs = append(attrs, "user_id", trace.userID, "role", trace.role)
		}
	}

	if location := wrapped.Header().Get("Location"); location != "" {
		attrs = append(attrs, "location", location)
	}

	// For error responses, extract and attach error details from the body.
	if wrapped.status >= 400 && wrapped.body.Len() > 0 {
		var parsed errorBody
		if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != nil {
			attrs = append(attrs, "error_code", parsed.Error.Code)
			attrs = append(attrs, "error_message", parsed.Error.Message)
			if parsed.Error.Details != "" {
				attrs = append(attrs, "error_details", parsed.Error.Details)
			}
		}
	}

	switch {
	case wrapped.status >= 500:
		logger.Error("request", attrs...)
	case wrapped.status >= 400:
		logger.Warn("request", attrs...)
	default:
		logger.Info("request", attrs...)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	// Capture the body only for error responses so we can log error details.
	if rw.status >= 400 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
