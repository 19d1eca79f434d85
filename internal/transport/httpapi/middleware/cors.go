package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS returns a CORS middleware handler for the staking front-end.
// A "*" origin disables credentials, which browsers refuse to combine with it.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	withCredentials := !slices.Contains(allowedOrigins, "*")

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Last-Event-ID",
		},
		ExposedHeaders: []string{
			"X-Request-Id",
		},
		AllowCredentials: withCredentials,
		MaxAge:           300, // 5 minutes
	})
}
