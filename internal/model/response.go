package model

// APIResponse is the envelope every portal endpoint answers with.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta describes the page a list response carries. Field names follow the
// remote API's paging vocabulary.
type Meta struct {
	Page       int   `json:"currentPage"`
	Size       int   `json:"pageSize"`
	Total      int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// PageMeta lifts the paging fields off a remote user page.
func PageMeta(p UserPage) *Meta {
	return &Meta{Page: p.CurrentPage, Size: p.PageSize, Total: p.TotalItems, TotalPages: p.TotalPages}
}

// ListMeta describes an unpaged list of n items as a single page.
func ListMeta(n int) *Meta {
	return &Meta{Size: n, Total: int64(n), TotalPages: 1}
}
