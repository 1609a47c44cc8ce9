package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
)

// CORS allows the configured storefront origins. Dev additionally accepts any
// localhost port so local frontends work without config changes.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(app.CORSOrigins))
	for _, origin := range app.CORSOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	dev := app.IsDev()

	return cors.New(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if _, ok := allowed[origin]; ok {
				return true
			}
			return dev && isLocalhost(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func isLocalhost(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
