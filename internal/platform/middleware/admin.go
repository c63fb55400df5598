package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleComplianceAdmin is the JWT role required for module administration.
const RoleComplianceAdmin = "compliance_admin"

type contextKeyActor struct{}

// ContextKeyActor is exported for use in handlers.
var ContextKeyActor = contextKeyActor{}

// GetActor retrieves the authenticated admin subject from the context.
func GetActor(ctx context.Context) string {
	actor, ok := ctx.Value(ContextKeyActor).(string)
	if !ok {
		return ""
	}
	return actor
}

type adminClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// RequireAdmin validates a bearer JWT signed with the shared HMAC secret and
// checks that it carries the compliance_admin role. The token subject becomes
// the actor for audit attribution.
func RequireAdmin(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "admin request missing bearer token",
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			claims := &adminClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(ctx, "admin token rejected",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if !slices.Contains(claims.Roles, RoleComplianceAdmin) {
				logger.WarnContext(ctx, "admin token lacks compliance_admin role",
					"subject", claims.Subject,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, http.StatusForbidden, "compliance_admin role required")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyActor, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
