package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/campussync/campussync/internal/shared"
)

func serve(mw func(http.Handler) http.Handler, p *shared.Principal) int {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireRole(t *testing.T) {
	m := Middleware{}
	reviewers := m.RequireRole(shared.ReviewerRoles()...)

	assert.Equal(t, http.StatusUnauthorized, serve(reviewers, nil))
	assert.Equal(t, http.StatusForbidden, serve(reviewers, &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}))
	assert.Equal(t, http.StatusNoContent, serve(reviewers, &shared.Principal{UserID: uuid.New(), Role: shared.RoleFaculty}))
	assert.Equal(t, http.StatusNoContent, serve(reviewers, &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}))
}

func TestRequireSuperAdmin(t *testing.T) {
	m := Middleware{}
	super := m.RequireSuperAdmin()

	assert.Equal(t, http.StatusForbidden, serve(super, &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, serve(super, &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin, IsSuperAdmin: true}))
}
