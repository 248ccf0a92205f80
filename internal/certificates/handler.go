package certificates

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/shared"
)

// multipartOverhead allows for form boundaries and headers on top of the file.
const multipartOverhead = 64 << 10

// Handler exposes certificate endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers certificate routes. Callers require authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ocr", h.intake("ocr"))
	r.Post("/ocr-gemini", h.intake("ocr-gemini"))
	r.Post("/create", h.create)
	r.Get("/mine", h.mine)
	r.Post("/delete", h.delete)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.ReviewerRoles()...))
		r.Get("/pending", h.pending)
		r.Post("/approve", h.review)
		r.Post("/batch-approve", h.batch)
		r.Post("/issue", h.issue)
	})
	r.Get("/{id}", h.show)
}

type listResponse struct {
	Items      []Certificate     `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) intake(extractor string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxUploadBytes()+multipartOverhead)
		file, _, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httpx.RespondError(w, ErrFileTooLarge)
				return
			}
			httpx.RespondError(w, ErrMissingFile)
			return
		}
		defer file.Close()
		resp, err := h.service.Intake(r.Context(), shared.PrincipalFromContext(r.Context()), extractor, file)
		if err != nil {
			h.fail(w, "certificate intake", err)
			return
		}
		httpx.JSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create certificate", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListMine(r.Context(), shared.PrincipalFromContext(r.Context()), shared.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list own certificates", err)
		return
	}
	writeList(w, items, page)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListPending(r.Context(), shared.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list pending certificates", err)
		return
	}
	writeList(w, items, page)
}

func writeList(w http.ResponseWriter, items []Certificate, page shared.Pagination) {
	if items == nil {
		items = []Certificate{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	cert, err := h.service.Get(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get certificate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cert)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	var in IDInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), shared.PrincipalFromContext(r.Context()), in.ID); err != nil {
		h.fail(w, "delete certificate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// review answers 502 with the verified certificate when issuance fails.
func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	var in ReviewInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Review(r.Context(), shared.PrincipalFromContext(r.Context()), in)
	if errors.Is(err, ErrIssuanceFailed) {
		if h.logger != nil {
			h.logger.Warn("certificate verified without credential", slog.String("certificate_id", in.ID.String()))
		}
		httpx.JSON(w, http.StatusBadGateway, res)
		return
	}
	if err != nil {
		h.fail(w, "review certificate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var in BatchInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Batch(r.Context(), shared.PrincipalFromContext(r.Context()), in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, "batch review certificates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var in IDInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cred, err := h.service.Issue(r.Context(), shared.PrincipalFromContext(r.Context()), in.ID)
	if err != nil {
		h.fail(w, "issue credential", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cred)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
