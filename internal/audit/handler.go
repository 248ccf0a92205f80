package audit

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Handler serves audit endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes. Callers gate the group to admins.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/export.csv", h.export)
	r.Get("/history/{module}/{id}", h.historyFor)
}

type listResponse struct {
	Items      []Entry           `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, "list audit logs", err)
		return
	}
	if items == nil {
		items = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Export(r.Context(), f)
	if err != nil {
		h.fail(w, "export audit logs", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-logs.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"occurred_at", "actor_id", "actor_email", "action", "entity", "entity_id", "meta"})
	for _, e := range items {
		actor := ""
		if e.ActorID != nil {
			actor = e.ActorID.String()
		}
		meta := ""
		if len(e.Meta) > 0 {
			raw, _ := json.Marshal(e.Meta)
			meta = string(raw)
		}
		_ = cw.Write([]string{e.OccurredAt.UTC().Format(time.RFC3339), actor, e.ActorEmail, e.Action, e.Entity, e.EntityID, meta})
	}
	cw.Flush()
	if err := cw.Error(); err != nil && h.logger != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

func (h *Handler) historyFor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrInvalidFilter)
		return
	}
	logs, err := h.service.History(r.Context(), chi.URLParam(r, "module"), id)
	if err != nil {
		h.fail(w, "review history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	f := Filters{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Action:   q.Get("action"),
		Page:     shared.ParsePageRequest(r),
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filters{}, ErrInvalidFilter
		}
		f.ActorID = &id
	}
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			return Filters{}, ErrInvalidFilter
		}
		*dst = t
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, ErrInvalidFilter
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
