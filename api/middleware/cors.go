package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/stockline-hq/stockline-backend/pkg/env"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
	"https://app.stockline.in",
	"https://stockline-staging.vercel.app",
}

// allowedOrigins returns the origin allowlist, overridable through the
// STOCKLINE_CORS_ORIGINS variable as a comma-separated list.
func allowedOrigins() []string {
	raw := env.Get("STOCKLINE_CORS_ORIGINS", "")
	if raw == "" {
		return defaultCORSOrigins
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return defaultCORSOrigins
	}
	return origins
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
