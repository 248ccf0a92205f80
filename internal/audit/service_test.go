package audit

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/shared"
)

type stubRepo struct {
	entries []Entry
	got     Filters
	limit   int
	offset  int
}

func (s *stubRepo) List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error) {
	s.got, s.limit, s.offset = f, limit, offset
	var out []Entry
	for _, e := range s.entries {
		if f.Entity != "" && e.Entity != f.Entity {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		out = append(out, e)
	}
	total := len(out)
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

type stubHistory struct {
	logs map[uuid.UUID][]shared.ApprovalLog
}

func (s stubHistory) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	return s.logs[ref], nil
}

func sampleEntries(actor uuid.UUID) []Entry {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []Entry{
		{ID: 3, ActorID: &actor, Action: "certificate.verified", Entity: "certificate", EntityID: "c1", OccurredAt: at.Add(2 * time.Hour)},
		{ID: 2, ActorID: &actor, Action: "role.change", Entity: "user_role", EntityID: "u1", Meta: map[string]any{"reason": "left the department"}, OccurredAt: at.Add(time.Hour)},
		{ID: 1, Action: "certificate.create", Entity: "certificate", EntityID: "c1", OccurredAt: at},
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	actor := uuid.New()
	repo := &stubRepo{entries: sampleEntries(actor)}
	svc := NewService(repo, stubHistory{})

	items, page, err := svc.List(context.Background(), Filters{Entity: " certificate ", Page: shared.PageRequest{Page: 2, PerPage: 1}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "certificate.create", items[0].Action)
	assert.Equal(t, "certificate", repo.got.Entity)
	assert.Equal(t, 1, repo.offset)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc := NewService(&stubRepo{}, stubHistory{})
	now := time.Now()
	_, _, err := svc.List(context.Background(), Filters{From: now, To: now.Add(-time.Hour)})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestHistoryKnownModulesOnly(t *testing.T) {
	ref := uuid.New()
	svc := NewService(&stubRepo{}, stubHistory{logs: map[uuid.UUID][]shared.ApprovalLog{
		ref: {{Module: shared.ModuleCertificate, RefID: ref, Action: shared.ApprovalSubmit}, {Module: shared.ModuleCertificate, RefID: ref, Action: shared.ApprovalApprove}},
	}})

	logs, err := svc.History(context.Background(), shared.ModuleCertificate, ref)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, shared.ApprovalApprove, logs[1].Action)

	empty, err := svc.History(context.Background(), shared.ModuleRoleRequest, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = svc.History(context.Background(), "journal", ref)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestHandlerParsesQueryAndExportsCSV(t *testing.T) {
	actor := uuid.New()
	repo := &stubRepo{entries: sampleEntries(actor)}
	r := chi.NewRouter()
	NewHandler(nil, NewService(repo, stubHistory{})).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?actor_id="+actor.String()+"&from=2026-03-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.got.ActorID)
	assert.Equal(t, actor, *repo.got.ActorID)
	assert.Equal(t, 2026, repo.got.From.Year())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?actor_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv?action=role.change", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "role.change", records[1][3])
	assert.Contains(t, records[1][6], "left the department")
}
