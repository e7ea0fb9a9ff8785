package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"support-portal/internal/form"
	"support-portal/internal/model"
	"support-portal/internal/session"
	"support-portal/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var (
		apiErr  *apierror.APIError
		formErr *form.ValidationError
	)
	if errors.As(err, &formErr) {
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Message = formErr.Message
		body.Details = fieldDetails(formErr.Fields)
	} else if errors.Is(err, model.ErrNetwork) {
		status = http.StatusServiceUnavailable
		body.Code = "NETWORK_ERROR"
		body.Message = session.MsgNetworkError
	} else if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		if status < 400 {
			status = http.StatusBadGateway
		}
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Not found"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	writeFailure(w, status, body)
}

func writeFailure(w http.ResponseWriter, status int, body *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func fieldDetails(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}
	return strings.Join(parts, "; ")
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", name+" must be a positive integer", name, http.StatusBadRequest)
	}
	return id, nil
}

func redirect(w http.ResponseWriter, status int, location string, data any) {
	w.Header().Set("Location", location)
	writeSuccess(w, status, data, nil)
}
