// Package credential holds the portal's single bearer token.
//
// Every backend persists the token before Save returns, so a request issued
// right after a successful Save always carries the new header.
package credential

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"support-portal/internal/model"
)

// Store is the process-wide token slot.
type Store interface {
	// Save persists token durably. Saving the same token twice is a no-op.
	Save(ctx context.Context, token string) error
	// Read returns the current token or model.ErrNoToken.
	Read(ctx context.Context) (string, error)
	// Clear removes the token. Clearing an empty slot succeeds.
	Clear(ctx context.Context) error
}

var ErrEmptyToken = errors.New("token must not be empty")

// AuthHeader reads the store at call time and returns the headers that
// authenticate a request: empty when no token is held, otherwise a single
// bearer Authorization header. A store read failure yields no header.
func AuthHeader(ctx context.Context, store Store) http.Header {
	header := http.Header{}

	token, err := store.Read(ctx)
	if err != nil || token == "" {
		return header
	}

	header.Set("Authorization", "Bearer "+token)
	return header
}

// Present reports whether the store currently holds a token.
func Present(ctx context.Context, store Store) bool {
	token, err := store.Read(ctx)
	return err == nil && token != ""
}

func normalize(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func absent() (string, error) {
	return "", model.ErrNoToken
}
