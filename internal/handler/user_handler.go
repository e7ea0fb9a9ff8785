package handler

import (
	"net/http"
	"strconv"

	"support-portal/internal/form"
	"support-portal/internal/middleware"
	"support-portal/internal/model"
	"support-portal/pkg/apierror"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// AdminHandler serves user management, agent creation and analytics.
type AdminHandler struct {
	admin AdminAPI
}

func NewAdminHandler(admin AdminAPI) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0, 0, -1)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := queryInt(r, "size", defaultPageSize, 1, maxPageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.admin.ListUsers(r.Context(), page, size)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users.Users, model.PageMeta(users))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && identity.ID == id {
		writeError(w, apierror.New("FORBIDDEN", "You cannot delete your own account", "id", http.StatusForbidden))
		return
	}

	if err := h.admin.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": id}, nil)
}

func (h *AdminHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload form.CreateAgentForm
	if err := form.Decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.admin.CreateAgent(r.Context(), payload.Request()); err != nil {
		writeError(w, err)
		return
	}

	redirect(w, http.StatusCreated, "/users", map[string]any{
		"name":  payload.Name,
		"email": payload.Email,
		"role":  model.RoleAgent,
	})
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, newStatsView(stats), nil)
}

// queryInt reads a non-negative integer query parameter. A negative hi
// means unbounded.
func queryInt(r *http.Request, name string, fallback int, lo int, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < lo || (hi >= 0 && value > hi) {
		return 0, apierror.New("BAD_REQUEST", "invalid "+name+" parameter", name, http.StatusBadRequest)
	}
	return value, nil
}
