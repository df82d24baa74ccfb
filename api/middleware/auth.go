package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/skillbridge-billing/api/responses"
	pkgAuth "github.com/angelmondragon/skillbridge-billing/pkg/auth"
	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
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

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				if claims.Role != "" {
					ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	token := strings.TrimSpace(header)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
