package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes. Callers gate the group to admins.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.assign)
	r.Delete("/", h.remove)
	r.Post("/change", h.change)
	r.Post("/change/request", h.requestChange)
	r.Post("/change/confirm", h.confirmChange)
	r.Get("/{userID}", h.get)
}

type listResponse struct {
	Items      []Assignment      `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Role:   shared.Role(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
		Page:   shared.ParsePageRequest(r),
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if items == nil {
		items = []Assignment{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, ErrUserNotFound)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var in ChangeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Assign(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	var in RemoveInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), shared.PrincipalFromContext(r.Context()), in); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request) {
	var in ChangeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Change(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "change role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) requestChange(w http.ResponseWriter, r *http.Request) {
	var in RequestChangeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ticket, err := h.service.RequestChange(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "request role change", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, ticket)
}

func (h *Handler) confirmChange(w http.ResponseWriter, r *http.Request) {
	var in ConfirmChangeInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.ConfirmChange(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "confirm role change", err)
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
