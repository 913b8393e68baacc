package authz

import (
	"log/slog"
	"net/http"
)

// Middleware wires authorization helpers for HTTP handlers. Requests without
// an authorization context are rejected: the gate fails closed.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the caller holds at least one of the required codes.
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(codes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ac := FromContext(r.Context())
			if ac == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if ac.Set.HasAny(codes...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, codes)
		})
	}
}

// RequireAll ensures the caller holds every required code.
func (m Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(codes) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ac := FromContext(r.Context())
			if ac == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if ac.Set.HasAll(codes...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, codes)
		})
	}
}

// RequireAction gates a route on a resource/action capability query, checking
// both code conventions.
func (m Middleware) RequireAction(resource string, action Action) func(http.Handler) http.Handler {
	return m.RequireAny(Candidates(resource, action)...)
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, codes []string) {
	if m.Logger != nil {
		m.Logger.Warn("authorization denied",
			slog.String("path", r.URL.Path),
			slog.Any("required", codes),
		)
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
