package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"support-portal/internal/model"
)

func (c *Client) ListUsers(ctx context.Context, page int, size int) (model.UserPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var out model.UserPage
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/admin/users",
		path:     "/admin/users?" + query.Encode(),
		auth:     true,
		fallback: "Failed to load users",
		out:      &out,
	})
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		route:    "/admin/users/{id}",
		path:     fmt.Sprintf("/admin/users/%d", id),
		auth:     true,
		fallback: "Failed to delete user",
	})
}

// CreateAgent registers an AGENT account; the server answers with plain text.
func (c *Client) CreateAgent(ctx context.Context, req model.CreateAgentRequest) error {
	req.Role = model.RoleAgent.String()
	return c.do(ctx, call{
		method:   http.MethodPost,
		route:    "/admin/agents",
		path:     "/admin/agents",
		body:     req,
		auth:     true,
		fallback: "Failed to create agent",
	})
}

func (c *Client) Stats(ctx context.Context) (model.SystemStats, error) {
	var out model.SystemStats
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/admin/stats",
		path:     "/admin/stats",
		auth:     true,
		fallback: "Failed to load stats",
		out:      &out,
	})
	return out, err
}
