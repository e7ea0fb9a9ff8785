package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"support-portal/internal/model"
)

// ListTickets returns every ticket; agents and admins use it.
func (c *Client) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	var out []model.Ticket
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/tickets",
		path:     "/tickets",
		auth:     true,
		fallback: "Failed to load tickets",
		out:      &out,
	})
	return out, err
}

// ListCustomerTickets returns the tickets of the calling customer.
func (c *Client) ListCustomerTickets(ctx context.Context) ([]model.Ticket, error) {
	var out []model.Ticket
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/customer/tickets",
		path:     "/customer/tickets",
		auth:     true,
		fallback: "Failed to load tickets",
		out:      &out,
	})
	return out, err
}

func (c *Client) GetTicket(ctx context.Context, id int64) (model.Ticket, error) {
	var out model.Ticket
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/tickets/{id}",
		path:     fmt.Sprintf("/tickets/%d", id),
		auth:     true,
		fallback: "Ticket not found",
		out:      &out,
	})
	return out, err
}

func (c *Client) ListResponses(ctx context.Context, ticketID int64) ([]model.TicketResponse, error) {
	var out []model.TicketResponse
	err := c.do(ctx, call{
		method:   http.MethodGet,
		route:    "/tickets/{id}/responses",
		path:     fmt.Sprintf("/tickets/%d/responses", ticketID),
		auth:     true,
		fallback: "Failed to load responses",
		out:      &out,
	})
	return out, err
}

func (c *Client) AddResponse(ctx context.Context, ticketID int64, req model.AddResponseRequest) (model.TicketResponse, error) {
	var out model.TicketResponse
	err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    "/tickets/{id}/responses",
		path:     fmt.Sprintf("/tickets/%d/responses", ticketID),
		body:     req,
		auth:     true,
		fallback: "Failed to add response",
		out:      &out,
	})
	return out, err
}

func (c *Client) UpdateStatus(ctx context.Context, ticketID int64, status model.TicketStatus) (model.Ticket, error) {
	var out model.Ticket
	err := c.do(ctx, call{
		method:   http.MethodPatch,
		route:    "/tickets/{id}/status",
		path:     fmt.Sprintf("/tickets/%d/status", ticketID),
		body:     model.UpdateStatusRequest{Status: status},
		auth:     true,
		fallback: "Failed to update status",
		out:      &out,
	})
	return out, err
}

func (c *Client) CreateTicket(ctx context.Context, req model.CreateTicketRequest) (model.Ticket, error) {
	var out model.Ticket
	err := c.do(ctx, call{
		method:   http.MethodPost,
		route:    "/customer/tickets",
		path:     "/customer/tickets",
		body:     req,
		auth:     true,
		fallback: "Failed to create ticket",
		out:      &out,
	})
	return out, err
}
