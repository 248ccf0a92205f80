package analytics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campussync/campussync/internal/platform/httpx"
)

// Handler serves the admin analytics endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.overview)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.service.Overview(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Error("analytics overview", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ov)
}
