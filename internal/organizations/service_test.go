package organizations

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/shared"
)

type stubRepo struct {
	orgs map[uuid.UUID]Organization
}

func (s *stubRepo) List(ctx context.Context, filters ListFilters) ([]Organization, int, error) {
	var out []Organization
	for _, o := range s.orgs {
		if filters.Type != "" && o.Type != filters.Type {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	o, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (s *stubRepo) Create(ctx context.Context, org Organization) (Organization, error) {
	for _, o := range s.orgs {
		if o.Slug == org.Slug {
			return Organization{}, ErrSlugTaken
		}
	}
	org.CreatedAt = time.Now()
	org.IsActive = true
	s.orgs[org.ID] = org
	return org, nil
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Universidad Técnica":      "universidad-tecnica",
		"  MIT -- Sloan ":          "mit-sloan",
		"École Polytechnique 2024": "ecole-polytechnique-2024",
		"!!!":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreateDerivesSlugAndRejectsDuplicates(t *testing.T) {
	svc := NewService(&stubRepo{orgs: map[uuid.UUID]Organization{}}, nil, nil, nil)
	actor := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin, IsSuperAdmin: true}

	org, err := svc.Create(context.Background(), actor, CreateInput{Name: "State University", Type: TypeUniversity})
	require.NoError(t, err)
	assert.Equal(t, "state-university", org.Slug)
	assert.True(t, org.IsActive)

	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "State  University", Type: TypeUniversity})
	require.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "???", Type: TypeOther})
	require.ErrorIs(t, err, ErrInvalidSlug)
}

func TestCreateRequiresSuperAdmin(t *testing.T) {
	svc := NewService(&stubRepo{orgs: map[uuid.UUID]Organization{}}, nil, nil, nil)
	h := NewHandler(nil, svc, rbac.Middleware{})

	do := func(p *shared.Principal) int {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
			})
		})
		r.Route("/orgs", h.MountRoutes)
		body := bytes.NewBufferString(`{"name":"Acme Corp","type":"company"}`)
		req := httptest.NewRequest(http.MethodPost, "/orgs/", body)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, do(&shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}))
	assert.Equal(t, http.StatusCreated, do(&shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin, IsSuperAdmin: true}))
}
