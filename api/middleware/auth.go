package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/projectmarket-backend/api/responses"
	pkgAuth "github.com/angelmondragon/projectmarket-backend/pkg/auth"
	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the caller.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			caller := Caller{UserID: claims.UserID.String(), AccountType: string(claims.AccountType)}
			ctx := WithCaller(r.Context(), caller)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":      caller.UserID,
					"account_type": caller.AccountType,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
