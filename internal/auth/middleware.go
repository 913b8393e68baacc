package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
)

// Middleware resolves bearer tokens into an actor and an authorization
// context on every request.
type Middleware struct {
	Logger  *slog.Logger
	Service *Service
}

// Authenticate rejects requests without a valid token. A stale permission
// version is a 401 carrying needs_permission_refresh so the client knows to
// call the refresh endpoint instead of re-prompting for credentials.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}

		identity, err := m.Service.Resolve(r.Context(), token)
		if errors.Is(err, shared.ErrStalePermissions) {
			httpx.JSON(w, http.StatusUnauthorized, httpx.ProblemDetail{
				Title:                  "Unauthorized",
				Status:                 http.StatusUnauthorized,
				Detail:                 "permissions changed since login",
				NeedsPermissionRefresh: true,
			})
			return
		}
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthorized) && m.Logger != nil {
				m.Logger.Error("resolve token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}

		ctx := shared.ContextWithActor(r.Context(), &shared.Actor{
			ID:      identity.User.ID,
			Email:   identity.User.Email,
			IsAdmin: identity.User.IsAdmin,
		})
		ctx = authz.WithContext(ctx, identity.Authz)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
