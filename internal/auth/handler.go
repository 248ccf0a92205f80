package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authn   Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authn Middleware) *Handler {
	return &Handler{logger: logger, service: service, authn: authn}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "slow down and try again shortly")
			}),
		))
		r.Post("/signup", h.handleSignup)
		r.Post("/login", h.handleLogin)
	})
	r.With(h.authn.Authenticate).Get("/me", h.handleMe)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, "signup", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	session, err := h.service.Login(r.Context(), in)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

type meResponse struct {
	User           *User       `json:"user"`
	Role           shared.Role `json:"role"`
	IsSuperAdmin   bool        `json:"is_super_admin"`
	IsPrimaryAdmin bool        `json:"is_primary_admin"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	user, err := h.service.Me(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "load current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		User:           user,
		Role:           principal.Role,
		IsSuperAdmin:   principal.IsSuperAdmin,
		IsPrimaryAdmin: principal.IsPrimaryAdmin,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
