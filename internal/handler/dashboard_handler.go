package handler

import (
	"context"
	"net/http"

	"support-portal/internal/middleware"
	"support-portal/internal/model"
	"support-portal/internal/view"
)

const (
	agentRecentTickets    = 10
	customerRecentTickets = 5
)

type TicketAPI interface {
	ListTickets(ctx context.Context) ([]model.Ticket, error)
	ListCustomerTickets(ctx context.Context) ([]model.Ticket, error)
	GetTicket(ctx context.Context, id int64) (model.Ticket, error)
	ListResponses(ctx context.Context, ticketID int64) ([]model.TicketResponse, error)
	AddResponse(ctx context.Context, ticketID int64, req model.AddResponseRequest) (model.TicketResponse, error)
	UpdateStatus(ctx context.Context, ticketID int64, status model.TicketStatus) (model.Ticket, error)
	CreateTicket(ctx context.Context, req model.CreateTicketRequest) (model.Ticket, error)
}

type AdminAPI interface {
	ListUsers(ctx context.Context, page int, size int) (model.UserPage, error)
	DeleteUser(ctx context.Context, id int64) error
	CreateAgent(ctx context.Context, req model.CreateAgentRequest) error
	Stats(ctx context.Context) (model.SystemStats, error)
}

type StatsView struct {
	model.SystemStats
	ResolutionRate int `json:"resolutionRate"`
}

func newStatsView(stats model.SystemStats) *StatsView {
	return &StatsView{SystemStats: stats, ResolutionRate: stats.ResolutionRate()}
}

// TicketCounts groups tickets the way the dashboards summarise them.
type TicketCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
}

func countTickets(tickets []model.Ticket) TicketCounts {
	counts := TicketCounts{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case model.TicketOpen, model.TicketInProgress:
			counts.Pending++
		case model.TicketResolved, model.TicketClosed:
			counts.Resolved++
		}
	}
	return counts
}

type DashboardView struct {
	View    view.Kind      `json:"view"`
	User    model.Identity `json:"user"`
	Stats   *StatsView     `json:"stats,omitempty"`
	Counts  *TicketCounts  `json:"counts,omitempty"`
	Tickets []model.Ticket `json:"tickets,omitempty"`
	Message string         `json:"message,omitempty"`
}

type DashboardHandler struct {
	tickets TicketAPI
	admin   AdminAPI
}

func NewDashboardHandler(tickets TicketAPI, admin AdminAPI) *DashboardHandler {
	return &DashboardHandler{tickets: tickets, admin: admin}
}

// Dashboard renders the variant the identity's role selects.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	h.render(w, r, identity, view.Dispatch(identity))
}

func (h *DashboardHandler) AdminHome(w http.ResponseWriter, r *http.Request) {
	h.home(w, r, view.AdminView)
}

func (h *DashboardHandler) AgentHome(w http.ResponseWriter, r *http.Request) {
	h.home(w, r, view.AgentView)
}

func (h *DashboardHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"user":    identity,
		"entries": view.Navigation(identity.Role),
	}, nil)
}

func (h *DashboardHandler) home(w http.ResponseWriter, r *http.Request, kind view.Kind) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	h.render(w, r, identity, kind)
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, identity model.Identity, kind view.Kind) {
	page := DashboardView{View: kind, User: identity}

	switch kind {
	case view.AdminView:
		stats, err := h.admin.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		page.Stats = newStatsView(stats)
	case view.AgentView:
		tickets, err := h.tickets.ListTickets(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		counts := countTickets(tickets)
		page.Counts = &counts
		page.Tickets = recent(tickets, agentRecentTickets)
	case view.CustomerView:
		tickets, err := h.tickets.ListCustomerTickets(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		counts := countTickets(tickets)
		page.Counts = &counts
		page.Tickets = recent(tickets, customerRecentTickets)
	case view.InvalidRole:
		page.Message = "Invalid user role"
	}

	writeSuccess(w, http.StatusOK, page, nil)
}

func recent(tickets []model.Ticket, n int) []model.Ticket {
	if len(tickets) > n {
		return tickets[:n]
	}
	return tickets
}
