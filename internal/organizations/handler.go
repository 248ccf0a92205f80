package organizations

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers organization routes. Creation needs a super-admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.With(h.rbac.RequireSuperAdmin()).Post("/", h.create)
}

type listResponse struct {
	Items      []Organization    `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := shared.ParsePageRequest(r)
	filters := ListFilters{
		Search:  q.Get("search"),
		Type:    Type(q.Get("type")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
		Page:    page.Page,
		Limit:   page.PerPage,
	}
	if v := q.Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filters.IsActive = &active
		}
	}
	orgs, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list organizations", err)
		return
	}
	if orgs == nil {
		orgs = []Organization{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: orgs, Pagination: pagination})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	org, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	org, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create organization", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, org)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
