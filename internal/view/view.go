// Package view selects the dashboard variant for a resolved identity and the
// navigation entries its role may see.
package view

import "support-portal/internal/model"

type Kind int

const (
	InvalidRole Kind = iota
	AdminView
	AgentView
	CustomerView
)

func (k Kind) String() string {
	switch k {
	case AdminView:
		return "admin"
	case AgentView:
		return "agent"
	case CustomerView:
		return "customer"
	default:
		return "invalid_role"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Dispatch picks exactly one dashboard for the identity. A role outside the
// known set gets InvalidRole rather than any of the three dashboards.
func Dispatch(identity model.Identity) Kind {
	switch identity.Role {
	case model.RoleAdmin:
		return AdminView
	case model.RoleAgent:
		return AgentView
	case model.RoleCustomer:
		return CustomerView
	case model.RoleUnknown:
		return InvalidRole
	default:
		return InvalidRole
	}
}

type NavEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var navigation = []struct {
	entry NavEntry
	roles model.RoleSet
}{
	{NavEntry{Label: "Dashboard", Path: "/dashboard"}, nil},
	{NavEntry{Label: "Tickets", Path: "/tickets"}, nil},
	{NavEntry{Label: "New Ticket", Path: "/new-ticket"}, model.NewRoleSet(model.RoleCustomer)},
	{NavEntry{Label: "Users", Path: "/users"}, model.NewRoleSet(model.RoleAdmin)},
	{NavEntry{Label: "Create Agent", Path: "/create-agent"}, model.NewRoleSet(model.RoleAdmin)},
}

// Navigation lists the sidebar entries for role. Unknown roles get none.
func Navigation(role model.Role) []NavEntry {
	entries := []NavEntry{}
	if !role.Known() {
		return entries
	}

	for _, item := range navigation {
		if item.roles.Empty() || item.roles.Contains(role) {
			entries = append(entries, item.entry)
		}
	}
	return entries
}
