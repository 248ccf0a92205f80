package credentials

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
)

// Handler exposes public credential lookup and verification.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers credential routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Get("/{id}/verify", h.verify)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get credential", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	v, err := h.service.Verify(r.Context(), id)
	if err != nil {
		h.fail(w, "verify credential", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
