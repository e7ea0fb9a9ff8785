package model

import "encoding/json"

// UserSummary is one row of the admin user list. Like Identity it keeps the
// server's role string next to the parsed role.
type UserSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"-"`
	RoleName  string    `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
}

type userSummaryJSON UserSummary

func (u *UserSummary) UnmarshalJSON(data []byte) error {
	var raw userSummaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = UserSummary(raw)
	u.Role = ParseRole(u.RoleName)
	return nil
}

func (u UserSummary) MarshalJSON() ([]byte, error) {
	out := userSummaryJSON(u)
	out.RoleName = roleLabel(u.Role, u.RoleName)
	return json.Marshal(out)
}

type UserPage struct {
	Users       []UserSummary `json:"users"`
	CurrentPage int           `json:"currentPage"`
	TotalItems  int64         `json:"totalItems"`
	TotalPages  int           `json:"totalPages"`
	PageSize    int           `json:"pageSize"`
}

type SystemStats struct {
	TotalUsers      int64 `json:"totalUsers"`
	TotalTickets    int64 `json:"totalTickets"`
	PendingTickets  int64 `json:"pendingTickets"`
	OpenTickets     int64 `json:"openTickets"`
	ResolvedTickets int64 `json:"resolvedTickets"`
	ClosedTickets   int64 `json:"closedTickets"`
	TotalAdmins     int64 `json:"totalAdmins"`
	TotalAgents     int64 `json:"totalAgents"`
	TotalCustomers  int64 `json:"totalCustomers"`
}

// ResolutionRate is the share of resolved tickets as a whole percentage.
func (s SystemStats) ResolutionRate() int {
	if s.TotalTickets <= 0 {
		return 0
	}
	return int(float64(s.ResolvedTickets)/float64(s.TotalTickets)*100 + 0.5)
}

type CreateAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
