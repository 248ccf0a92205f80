package rbac

import (
	"log/slog"
	"net/http"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Middleware wires role authorization helpers for HTTP handlers. It expects
// the authentication middleware to have attached a principal.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the current principal holds at least one of the roles.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if len(roles) == 0 || principal.HasRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(r, principal, "role")
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
		})
	}
}

// RequireSuperAdmin ensures the principal carries the super-admin flag.
func (m Middleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if principal.IsSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(r, principal, "super_admin")
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "super admin required")
		})
	}
}

func (m Middleware) deny(r *http.Request, p *shared.Principal, check string) {
	if m.Logger == nil {
		return
	}
	m.Logger.Warn("rbac denied",
		slog.String("check", check),
		slog.String("user_id", p.UserID.String()),
		slog.String("role", string(p.Role)),
		slog.String("path", r.URL.Path),
	)
}
