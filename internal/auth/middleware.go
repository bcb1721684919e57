package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
)

// Middleware guards routes with bearer tokens.
type Middleware struct {
	Verifier Verifier
	Logger   zerolog.Logger
}

// RequireRole rejects requests without a valid bearer token carrying role. The
// token subject is attached to the request context.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.authorize(r, role)
			if err != nil {
				if errors.Is(err, ErrForbidden) {
					m.Logger.Warn().Str("subject", claims.Subject).Str("path", r.URL.Path).Msg("admin access denied")
					common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
					return
				}
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// RequireAdmin is RequireRole(RoleAdmin).
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(RoleAdmin)(next)
}

func (m Middleware) authorize(r *http.Request, role string) (Claims, error) {
	token := bearerToken(r)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	claims, err := m.Verifier.Parse(token)
	if err != nil {
		return Claims{}, err
	}
	if role != "" && claims.Role != role {
		return claims, ErrForbidden
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
