package facultyapprovals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Handler exposes faculty approval endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountUserRoutes registers the application route.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Post("/", h.apply)
}

// MountAdminRoutes registers review routes. Callers gate the group to admins.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.act)
	r.Get("/{id}", h.get)
}

type listResponse struct {
	Items      []Approval        `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var in ApplyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Apply(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "apply faculty approval", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Role:   shared.Role(q.Get("role")),
		Page:   shared.ParsePageRequest(r),
	}
	if v := q.Get("organization_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			httpx.RespondError(w, ErrInvalidFilter)
			return
		}
		filter.OrganizationID = &orgID
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list faculty approvals", err)
		return
	}
	if items == nil {
		items = []Approval{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get faculty approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request) {
	var in ActInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Act(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "act on faculty approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
