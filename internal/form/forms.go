package form

import (
	"strings"

	"support-portal/internal/model"
)

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (f *LoginForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
}

// RegisterForm is the self-service sign-up form. It has no role field; new
// accounts are always customers.
type RegisterForm struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (f *RegisterForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
}

type CreateAgentForm struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (f *CreateAgentForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
}

func (f *CreateAgentForm) Request() model.CreateAgentRequest {
	return model.CreateAgentRequest{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Role:     model.RoleAgent.String(),
	}
}

type TicketForm struct {
	Subject     string `json:"subject" validate:"required,min=5,max=100"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
	Priority    string `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
}

// Normalize trims text fields and defaults the priority to MEDIUM.
func (f *TicketForm) Normalize() {
	f.Subject = strings.TrimSpace(f.Subject)
	f.Description = strings.TrimSpace(f.Description)
	f.Priority = strings.ToUpper(strings.TrimSpace(f.Priority))
	if f.Priority == "" {
		f.Priority = string(model.PriorityMedium)
	}
}

func (f *TicketForm) Request(createdBy string) model.CreateTicketRequest {
	return model.CreateTicketRequest{
		Subject:     f.Subject,
		Description: f.Description,
		Priority:    model.TicketPriority(f.Priority),
		CreatedBy:   createdBy,
	}
}

type ResponseForm struct {
	Message string `json:"message" validate:"required"`
}

func (f *ResponseForm) Normalize() {
	f.Message = strings.TrimSpace(f.Message)
}

type StatusForm struct {
	Status string `json:"status" validate:"required,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

func (f *StatusForm) Normalize() {
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
}
