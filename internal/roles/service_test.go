package roles

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu          sync.Mutex
	assignments map[uuid.UUID]Assignment
	stored      map[uuid.UUID]bool
	audits      []shared.AuditLog
	writes      int
}

func newMockRepository() *mockRepository {
	return &mockRepository{assignments: map[uuid.UUID]Assignment{}, stored: map[uuid.UUID]bool{}}
}

func (m *mockRepository) addUser(role shared.Role, super, primary bool) uuid.UUID {
	id := uuid.New()
	now := time.Now()
	m.assignments[id] = Assignment{UserID: id, Email: id.String()[:8] + "@x.edu", Role: role, IsSuperAdmin: super, IsPrimaryAdmin: primary, CreatedAt: &now}
	m.stored[id] = true
	return id
}

func (m *mockRepository) Get(ctx context.Context, userID uuid.UUID) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[userID]
	if !ok {
		return Assignment{}, ErrUserNotFound
	}
	return a, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Assignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, a := range m.assignments {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &mockTx{m: m, pending: map[uuid.UUID]*Assignment{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, a := range tx.pending {
		if a == nil {
			cur := m.assignments[id]
			m.assignments[id] = Assignment{UserID: id, Email: cur.Email, Role: shared.RoleStudent}
			delete(m.stored, id)
			continue
		}
		m.assignments[id] = *a
		m.stored[id] = true
	}
	m.audits = append(m.audits, tx.audits...)
	m.writes += len(tx.pending)
	return nil
}

type mockTx struct {
	m       *mockRepository
	pending map[uuid.UUID]*Assignment
	audits  []shared.AuditLog
}

func (t *mockTx) LockAssignment(ctx context.Context, userID uuid.UUID) (Assignment, error) {
	a, ok := t.m.assignments[userID]
	if !ok {
		return Assignment{}, ErrUserNotFound
	}
	return a, nil
}

func (t *mockTx) Upsert(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) (Assignment, error) {
	a := t.m.assignments[userID]
	a.Role = role
	a.AssignedBy = &actorID
	now := time.Now()
	a.UpdatedAt = &now
	if a.CreatedAt == nil {
		a.CreatedAt = &now
	}
	t.pending[userID] = &a
	return a, nil
}

func (t *mockTx) Delete(ctx context.Context, userID uuid.UUID) error {
	t.pending[userID] = nil
	return nil
}

func (t *mockTx) InsertAudit(ctx context.Context, log shared.AuditLog) error {
	t.audits = append(t.audits, log)
	return nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, *countingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMockRepository()
	cache := &countingCache{}
	return NewService(repo, NewRedisTicketStore(client), cache, nil), repo, cache, mr
}

func adminPrincipal(repo *mockRepository) *shared.Principal {
	id := repo.addUser(shared.RoleAdmin, false, false)
	return &shared.Principal{UserID: id, Role: shared.RoleAdmin}
}

// ============================================================================
// TESTS
// ============================================================================

func TestChangeDemotesAdminWithReasonAndAudits(t *testing.T) {
	svc, repo, cache, _ := newTestService(t)
	actor := adminPrincipal(repo)
	target := repo.addUser(shared.RoleAdmin, false, false)

	got, err := svc.Change(context.Background(), actor, ChangeInput{UserID: target, NewRole: shared.RoleStudent, Reason: "Left the organization after audit"})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleStudent, got.Role)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, "Left the organization after audit", repo.audits[0].Meta["reason"])
	assert.Equal(t, "admin", repo.audits[0].Meta["from"])
	assert.Equal(t, 1, cache.bumps)
}

func TestChangeRejectedGuardWritesNothing(t *testing.T) {
	svc, repo, cache, _ := newTestService(t)
	actor := adminPrincipal(repo)
	target := repo.addUser(shared.RoleAdmin, false, false)
	protected := repo.addUser(shared.RoleAdmin, true, false)
	ctx := context.Background()

	_, err := svc.Change(ctx, actor, ChangeInput{UserID: target, NewRole: shared.RoleStudent, Reason: "bye"})
	require.ErrorIs(t, err, ErrJustificationRequired)

	_, err = svc.Change(ctx, actor, ChangeInput{UserID: protected, NewRole: shared.RoleFaculty})
	require.ErrorIs(t, err, ErrProtectedAccount)

	_, err = svc.Change(ctx, actor, ChangeInput{UserID: actor.UserID, NewRole: shared.RoleFaculty})
	require.ErrorIs(t, err, ErrSelfChange)

	assert.Zero(t, repo.writes)
	assert.Empty(t, repo.audits)
	assert.Zero(t, cache.bumps)
	assert.Equal(t, shared.RoleAdmin, repo.assignments[target].Role)
}

func TestChangeSameRoleIsNoop(t *testing.T) {
	svc, repo, cache, _ := newTestService(t)
	actor := adminPrincipal(repo)
	target := repo.addUser(shared.RoleFaculty, false, false)

	got, err := svc.Change(context.Background(), actor, ChangeInput{UserID: target, NewRole: shared.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleFaculty, got.Role)
	assert.Zero(t, repo.writes)
	assert.Zero(t, cache.bumps)
}

func TestRemoveFallsBackToStudent(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	actor := adminPrincipal(repo)
	target := repo.addUser(shared.RoleRecruiter, false, false)

	require.NoError(t, svc.Remove(context.Background(), actor, RemoveInput{UserID: target}))
	assert.Equal(t, shared.RoleStudent, repo.assignments[target].Role)
	assert.False(t, repo.stored[target])
	require.Len(t, repo.audits, 1)
	assert.Equal(t, "role.remove", repo.audits[0].Action)
}

func TestTwoPhaseChangeFlow(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	actor := adminPrincipal(repo)
	target := repo.addUser(shared.RoleAdmin, false, false)
	ctx := context.Background()

	ticket, err := svc.RequestChange(ctx, actor, RequestChangeInput{UserID: target, NewRole: shared.RoleStudent})
	require.NoError(t, err)
	assert.True(t, ticket.RequiresJustification)
	assert.Equal(t, shared.RoleAdmin, ticket.CurrentRole)
	assert.Zero(t, repo.writes, "request must not mutate")

	_, err = svc.ConfirmChange(ctx, actor, ConfirmChangeInput{Token: ticket.Token, Justification: "bye"})
	require.ErrorIs(t, err, ErrJustificationRequired)

	// the failed confirmation consumed the ticket
	_, err = svc.ConfirmChange(ctx, actor, ConfirmChangeInput{Token: ticket.Token, Justification: "Left the organization after audit"})
	require.ErrorIs(t, err, ErrTicketInvalid)

	ticket, err = svc.RequestChange(ctx, actor, RequestChangeInput{UserID: target, NewRole: shared.RoleStudent})
	require.NoError(t, err)
	got, err := svc.ConfirmChange(ctx, actor, ConfirmChangeInput{Token: ticket.Token, Justification: "Left the organization after audit"})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleStudent, got.Role)
}

func TestRequestChangeRejectsProtectedAndSelf(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	actor := adminPrincipal(repo)
	primary := repo.addUser(shared.RoleAdmin, false, true)
	ctx := context.Background()

	_, err := svc.RequestChange(ctx, actor, RequestChangeInput{UserID: primary, NewRole: shared.RoleStudent})
	require.ErrorIs(t, err, ErrProtectedAccount)

	_, err = svc.RequestChange(ctx, actor, RequestChangeInput{UserID: actor.UserID, NewRole: shared.RoleStudent})
	require.ErrorIs(t, err, ErrSelfChange)
}

func TestConfirmChangeTicketBoundToActorAndExpires(t *testing.T) {
	svc, repo, _, mr := newTestService(t)
	actor := adminPrincipal(repo)
	other := adminPrincipal(repo)
	target := repo.addUser(shared.RoleStudent, false, false)
	ctx := context.Background()

	ticket, err := svc.RequestChange(ctx, actor, RequestChangeInput{UserID: target, NewRole: shared.RoleFaculty})
	require.NoError(t, err)
	assert.False(t, ticket.RequiresJustification)
	_, err = svc.ConfirmChange(ctx, other, ConfirmChangeInput{Token: ticket.Token})
	require.ErrorIs(t, err, ErrTicketInvalid)

	ticket, err = svc.RequestChange(ctx, actor, RequestChangeInput{UserID: target, NewRole: shared.RoleFaculty})
	require.NoError(t, err)
	mr.FastForward(defaultTicketTTL + time.Second)
	_, err = svc.ConfirmChange(ctx, actor, ConfirmChangeInput{Token: ticket.Token})
	require.ErrorIs(t, err, ErrTicketInvalid)
	assert.Equal(t, shared.RoleStudent, repo.assignments[target].Role)
}

func TestListRejectsUnknownRoleFilter(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	repo.addUser(shared.RoleFaculty, false, false)

	_, _, err := svc.List(context.Background(), ListFilter{Role: "owner"})
	require.ErrorIs(t, err, ErrInvalidRole)

	items, page, err := svc.List(context.Background(), ListFilter{Role: shared.RoleFaculty})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Total)
}
