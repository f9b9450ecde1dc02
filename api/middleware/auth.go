package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/anhpnguyen/edupay-backend/api/responses"
	pkgAuth "github.com/anhpnguyen/edupay-backend/pkg/auth"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

// Auth validates a staff bearer token and seeds the request context with the claims.
// Agent credentials are rejected here; they only open the agent surface.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.Kind != pkgAuth.TokenKindUser {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff credentials required"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    claims.UserID.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AgentAuth validates an agent bearer credential for the agent-facing surface.
func AgentAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.Kind != pkgAuth.TokenKindAgent {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent credentials required"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxAgentID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxAgentHost, claims.HostID)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"agent_id":      claims.UserID.String(),
					"agent_host_id": claims.HostID,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
