// Package authz decides whether the current identity may enter a page.
package authz

import "support-portal/internal/model"

type Kind int

const (
	Pending Kind = iota
	Allow
	RedirectLogin
	RedirectHome
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

const (
	LoginPath = "/auth"
	RootPath  = "/"
)

// Decision is the outcome of a gate check. Location is set for both redirect
// kinds.
type Decision struct {
	Kind     Kind
	Location string
}

// Authorize is a pure function of the session view and the roles a page
// accepts. An empty required set admits any authenticated identity.
func Authorize(identity *model.Identity, loading bool, required model.RoleSet) Decision {
	if loading {
		return Decision{Kind: Pending}
	}

	if identity == nil {
		return Decision{Kind: RedirectLogin, Location: LoginPath}
	}

	if required.Empty() || required.Contains(identity.Role) {
		return Decision{Kind: Allow}
	}

	return Decision{Kind: RedirectHome, Location: HomeOf(identity.Role)}
}

// HomeOf returns the landing page of a role.
func HomeOf(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return "/admin"
	case model.RoleCustomer:
		return "/tickets"
	case model.RoleAgent:
		return "/agent"
	default:
		return RootPath
	}
}
