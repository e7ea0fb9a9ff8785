package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets browser tabs on allowed origins call the portal and read the
// navigation headers it answers with. With no origins listed only the
// portal's own pages can read responses; "*" must be configured explicitly.
func CORS(policy *OriginPolicy) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowOriginFunc: policy.Listed,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:  []string{"Content-Type", requestIDHeader},
		ExposedHeaders:  []string{"Location", "Retry-After", requestIDHeader},
		MaxAge:          3600,
	}).Handler
}
