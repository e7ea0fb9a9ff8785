package handler

import (
	"net/http"

	"support-portal/internal/form"
	"support-portal/internal/middleware"
	"support-portal/internal/model"
)

type TicketHandler struct {
	tickets TicketAPI
}

func NewTicketHandler(tickets TicketAPI) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// List shows a customer their own tickets and everyone else all tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var (
		tickets []model.Ticket
		err     error
	)
	if identity.Role == model.RoleCustomer {
		tickets, err = h.tickets.ListCustomerTickets(r.Context())
	} else {
		tickets, err = h.tickets.ListTickets(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tickets, model.ListMeta(len(tickets)))
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	ticket, err := h.tickets.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	responses, err := h.tickets.ListResponses(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TicketDetail{Ticket: ticket, Responses: responses}, nil)
}

func (h *TicketHandler) AddResponse(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload form.ResponseForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	response, err := h.tickets.AddResponse(r.Context(), id, model.AddResponseRequest{
		Message:     payload.Message,
		RespondedBy: identity.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, response, nil)
}

// UpdateStatus leaves the ticket alone when it already has the status.
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload form.StatusForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	current, err := h.tickets.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	status := model.TicketStatus(payload.Status)
	if current.Status == status {
		writeSuccess(w, http.StatusOK, current, nil)
		return
	}

	updated, err := h.tickets.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated, nil)
}

type newTicketPage struct {
	Priorities      []model.TicketPriority `json:"priorities"`
	DefaultPriority model.TicketPriority   `json:"defaultPriority"`
}

func (h *TicketHandler) NewTicketPage(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, newTicketPage{
		Priorities:      []model.TicketPriority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh},
		DefaultPriority: model.PriorityMedium,
	}, nil)
}

// Create files a ticket as the signed-in customer and points at the list.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload form.TicketForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	ticket, err := h.tickets.CreateTicket(r.Context(), payload.Request(identity.Name))
	if err != nil {
		writeError(w, err)
		return
	}

	redirect(w, http.StatusCreated, "/tickets", ticket)
}
