package rolerequests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Handler exposes role request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountUserRoutes registers the self-service routes.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listMine)
}

// MountAdminRoutes registers review routes. Callers gate the group to admins.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/deny", h.deny)
}

type listResponse struct {
	Items      []Request         `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create role request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListMine(r.Context(), shared.PrincipalFromContext(r.Context()), shared.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list own role requests", err)
		return
	}
	h.writeList(w, items, page)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:        Status(q.Get("status")),
		RequestedRole: shared.Role(q.Get("role")),
		Page:          shared.ParsePageRequest(r),
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list role requests", err)
		return
	}
	h.writeList(w, items, page)
}

func (h *Handler) writeList(w http.ResponseWriter, items []Request, page shared.Pagination) {
	if items == nil {
		items = []Request{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get role request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, DecisionApprove)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, DecisionDeny)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, decision Decision) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ReviewInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actor := shared.PrincipalFromContext(r.Context())
	var (
		req Request
		err error
	)
	if decision == DecisionApprove {
		req, err = h.service.Approve(r.Context(), actor, id, in)
	} else {
		req, err = h.service.Deny(r.Context(), actor, id, in)
	}
	if err != nil {
		h.fail(w, "review role request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
