package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/easyrecs-backend/pkg/types"
)

var defaultCORSOrigins = []string{
	"https://admin.shopify.com",
}

// CORS returns middleware that applies the admin API's allowed origin policy.
// An empty origins list falls back to the embedded admin host.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Requested-With"},
		ExposedHeaders:   []string{types.RequestIDHeader, replayedHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
