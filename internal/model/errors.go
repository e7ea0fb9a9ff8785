package model

import "errors"

var (
	// Credential errors
	ErrNoToken = errors.New("no session token")

	// Session errors
	ErrAuthRejected = errors.New("authentication rejected")
	ErrNetwork      = errors.New("network error")
	ErrSuperseded   = errors.New("session cycle superseded")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrValidation   = errors.New("validation failed")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
