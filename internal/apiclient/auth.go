package apiclient

import (
	"context"
	"net/http"

	"support-portal/internal/model"
)

const (
	msgLoginFailed        = "Login failed"
	msgRegistrationFailed = "Registration failed"
	msgInvalidToken       = "Invalid token"
)

func (c *Client) Login(ctx context.Context, email string, password string) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    "/auth/login",
		path:     "/auth/login",
		body:     model.LoginRequest{Email: email, Password: password},
		fallback: msgLoginFailed,
		out:      &out,
	})
	return out, err
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    "/auth/register",
		path:     "/auth/register",
		body:     req,
		fallback: msgRegistrationFailed,
		out:      &out,
	})
	return out, err
}

// Me resolves the identity behind the token currently held in the store.
func (c *Client) Me(ctx context.Context) (model.Identity, error) {
	var out model.Identity
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/auth/me",
		path:     "/auth/me",
		auth:     true,
		fallback: msgInvalidToken,
		out:      &out,
	})
	return out, err
}
