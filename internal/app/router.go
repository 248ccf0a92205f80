package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campussync/campussync/internal/analytics"
	"github.com/campussync/campussync/internal/audit"
	"github.com/campussync/campussync/internal/auth"
	"github.com/campussync/campussync/internal/certificates"
	"github.com/campussync/campussync/internal/credentials"
	"github.com/campussync/campussync/internal/facultyapprovals"
	"github.com/campussync/campussync/internal/observability"
	"github.com/campussync/campussync/internal/organizations"
	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/rolerequests"
	"github.com/campussync/campussync/internal/roles"
	"github.com/campussync/campussync/internal/shared"
	"github.com/campussync/campussync/jobs"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	Authn          auth.Middleware
	RBACMiddleware rbac.Middleware
	HealthChecks   map[string]HealthCheck

	AuthHandler            *auth.Handler
	RolesHandler           *roles.Handler
	RoleRequestsHandler    *rolerequests.Handler
	FacultyApprovalHandler *facultyapprovals.Handler
	OrganizationsHandler   *organizations.Handler
	CertificatesHandler    *certificates.Handler
	CredentialsHandler     *credentials.Handler
	AnalyticsHandler       *analytics.Handler
	AuditHandler           *audit.Handler
	JobHandler             *jobs.Handler
}

// NewRouter constructs the chi.Router with CampusSync defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no such endpoint")
		})
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.CredentialsHandler != nil {
			r.Route("/credentials", params.CredentialsHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.Authn.Authenticate)

			if params.RoleRequestsHandler != nil {
				r.Route("/role-requests", params.RoleRequestsHandler.MountUserRoutes)
			}
			if params.FacultyApprovalHandler != nil {
				r.Route("/faculty-approvals", params.FacultyApprovalHandler.MountUserRoutes)
			}
			if params.CertificatesHandler != nil {
				r.Route("/certificates", params.CertificatesHandler.MountRoutes)
			}

			r.Route("/admin", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireRole(shared.RoleAdmin))
				if params.RoleRequestsHandler != nil {
					r.Route("/role-requests", params.RoleRequestsHandler.MountAdminRoutes)
				}
				if params.RolesHandler != nil {
					r.Route("/roles", params.RolesHandler.MountRoutes)
				}
				if params.FacultyApprovalHandler != nil {
					r.Route("/faculty-approvals", params.FacultyApprovalHandler.MountAdminRoutes)
				}
				if params.OrganizationsHandler != nil {
					r.Route("/organizations", params.OrganizationsHandler.MountRoutes)
				}
				if params.AnalyticsHandler != nil {
					r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
				}
				if params.AuditHandler != nil {
					r.Route("/audit-logs", params.AuditHandler.MountRoutes)
				}
			})

			if params.JobHandler != nil {
				r.With(params.RBACMiddleware.RequireRole(shared.RoleAdmin)).Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}
