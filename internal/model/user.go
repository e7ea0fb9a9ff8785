package model

import "encoding/json"

// Identity is the authenticated user record as returned by the remote API.
// Views read it; only the session package replaces it. RoleName keeps the
// server's role string as sent, so an unrecognised role is echoed back
// unchanged while Role stays RoleUnknown.
type Identity struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"-"`
	RoleName  string    `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
}

type identityJSON Identity

func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Identity(raw)
	i.Role = ParseRole(i.RoleName)
	return nil
}

func (i Identity) MarshalJSON() ([]byte, error) {
	out := identityJSON(i)
	out.RoleName = i.RoleLabel()
	return json.Marshal(out)
}

// RoleLabel is the role as it should be shown: the canonical name for a known
// role, otherwise the server's own string.
func (i Identity) RoleLabel() string {
	return roleLabel(i.Role, i.RoleName)
}

func roleLabel(role Role, raw string) string {
	if role.Known() || raw == "" {
		return role.String()
	}
	return raw
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthResponse is the body of a successful login or register call. User is
// optional: some deployments answer with the token alone.
type AuthResponse struct {
	Token string    `json:"token"`
	User  *Identity `json:"user,omitempty"`
}
