package model

// Role is the closed set of portal roles. The zero value is RoleUnknown so an
// absent or unrecognised role never silently maps to a real one.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleAgent
	RoleCustomer
)

// ParseRole maps the wire name to a Role. Only the exact enum names match;
// "admin" or "ROLE_ADMIN" are unknown roles.
func ParseRole(raw string) Role {
	switch raw {
	case "ADMIN":
		return RoleAdmin
	case "AGENT":
		return RoleAgent
	case "CUSTOMER":
		return RoleCustomer
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleAgent:
		return "AGENT"
	case RoleCustomer:
		return "CUSTOMER"
	default:
		return "UNKNOWN"
	}
}

func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleAgent || r == RoleCustomer
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// RoleSet is the set of roles a route accepts. An empty set admits any
// authenticated identity.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(role Role) bool {
	_, ok := s[role]
	return ok
}

func (s RoleSet) Empty() bool {
	return len(s) == 0
}
