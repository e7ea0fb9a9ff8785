package model

type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
)

type Ticket struct {
	ID          int64          `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	CreatedBy   string         `json:"createdBy"`
	UserID      *int64         `json:"userId,omitempty"`
	CreatedAt   Timestamp      `json:"createdAt"`
	UpdatedAt   Timestamp      `json:"updatedAt"`
}

type TicketResponse struct {
	ID          int64     `json:"id"`
	Message     string    `json:"message"`
	RespondedBy string    `json:"respondedBy"`
	RespondedAt Timestamp `json:"respondedAt"`
}

type TicketDetail struct {
	Ticket    Ticket           `json:"ticket"`
	Responses []TicketResponse `json:"responses"`
}

type CreateTicketRequest struct {
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	CreatedBy   string         `json:"createdBy"`
}

type AddResponseRequest struct {
	Message     string `json:"message"`
	RespondedBy string `json:"respondedBy"`
}

type UpdateStatusRequest struct {
	Status TicketStatus `json:"status"`
}
