package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// OriginPolicy decides which browser origins may talk to the portal. The
// portal holds a single signed-in session, so a request from another site
// would act with the operator's identity. Same-origin requests are always
// allowed; other origins only when listed, or when the list contains "*".
type OriginPolicy struct {
	allowed []string
	any     bool
}

func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed = append(p.allowed, origin)
		}
	}
	return p
}

// Listed reports whether origin is explicitly allowed.
func (p *OriginPolicy) Listed(origin string) bool {
	return p.any || slices.Contains(p.allowed, strings.TrimRight(origin, "/"))
}

// Allows reports whether r comes from the portal's own origin or an allowed
// one. A request without an Origin header is allowed unless the browser
// marks it cross-site.
func (p *OriginPolicy) Allows(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return r.Header.Get("Sec-Fetch-Site") != "cross-site"
	}

	return sameOrigin(origin, r) || p.Listed(origin)
}

func sameOrigin(origin string, r *http.Request) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// RejectCrossOriginWrites refuses state-changing requests from origins the
// policy does not allow. Reads are left to CORS, which withholds the response
// from foreign pages.
func RejectCrossOriginWrites(policy *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if !policy.Allows(r) {
					writeJSONError(w, http.StatusForbidden, "FORBIDDEN_ORIGIN", "Request origin is not allowed")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
