package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware allowing browser clients on the configured
// origins. Credentials are allowed because guest identity rides in a
// cookie.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
