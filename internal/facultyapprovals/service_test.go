package facultyapprovals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campussync/campussync/internal/roles"
	"github.com/campussync/campussync/internal/shared"
)

type mockRepository struct {
	mu          sync.Mutex
	orgs        map[uuid.UUID]string
	approvals   map[uuid.UUID]Approval
	assignments map[uuid.UUID]roles.Assignment
	history     []shared.ApprovalLog
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orgs:        map[uuid.UUID]string{},
		approvals:   map[uuid.UUID]Approval{},
		assignments: map[uuid.UUID]roles.Assignment{},
	}
}

func (m *mockRepository) Create(ctx context.Context, userID, orgID uuid.UUID, role shared.Role) (Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.orgs[orgID]
	if !ok {
		return Approval{}, ErrUnknownOrg
	}
	for _, a := range m.approvals {
		if a.UserID == userID && a.OrganizationID == orgID && a.Role == role {
			return Approval{}, ErrDuplicate
		}
	}
	a := Approval{ID: uuid.New(), UserID: userID, Email: "u@campus.edu", Role: role, OrganizationID: orgID, OrganizationName: name, Status: StatusPending, CreatedAt: time.Now()}
	m.approvals[a.ID] = a
	return a, nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[id]
	if !ok {
		return Approval{}, ErrNotFound
	}
	return a, nil
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Approval, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Approval
	for _, a := range m.approvals {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.OrganizationID != nil && a.OrganizationID != *filter.OrganizationID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &mockTx{m: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.decided != nil {
		m.approvals[tx.decided.ID] = *tx.decided
	}
	if tx.granted != nil {
		m.assignments[tx.granted.UserID] = *tx.granted
	}
	m.history = append(m.history, tx.history...)
	return nil
}

type mockTx struct {
	m       *mockRepository
	decided *Approval
	granted *roles.Assignment
	history []shared.ApprovalLog
}

func (t *mockTx) Decide(ctx context.Context, id uuid.UUID, status Status, actorID uuid.UUID, notes string, at time.Time) (Approval, error) {
	a, ok := t.m.approvals[id]
	if !ok {
		return Approval{}, ErrNotFound
	}
	if a.Status != StatusPending {
		return Approval{}, ErrAlreadyDecided
	}
	a.Status = status
	a.ApprovedBy = &actorID
	a.ApprovedAt = &at
	t.decided = &a
	return a, nil
}

func (t *mockTx) LockAssignment(ctx context.Context, userID uuid.UUID) (roles.Assignment, error) {
	a, ok := t.m.assignments[userID]
	if !ok {
		return roles.Assignment{UserID: userID, Role: shared.RoleStudent}, nil
	}
	return a, nil
}

func (t *mockTx) ApplyRole(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) error {
	a := t.m.assignments[userID]
	a.UserID = userID
	a.Role = role
	t.granted = &a
	return nil
}

func (t *mockTx) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	t.history = append(t.history, log)
	return nil
}

func (t *mockTx) InsertAudit(ctx context.Context, log shared.AuditLog) error { return nil }

func TestApplyAndApproveGrantsRole(t *testing.T) {
	repo := newMockRepository()
	org := uuid.New()
	repo.orgs[org] = "State University"
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	user := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}
	admin := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}

	a, err := svc.Apply(ctx, user, ApplyInput{OrganizationID: org, Role: shared.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	_, err = svc.Apply(ctx, user, ApplyInput{OrganizationID: org, Role: shared.RoleFaculty})
	require.ErrorIs(t, err, ErrDuplicate)

	decided, err := svc.Act(ctx, admin, ActInput{ID: a.ID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	assert.Equal(t, shared.RoleFaculty, repo.assignments[user.UserID].Role)
	require.Len(t, repo.history, 1)
	assert.Equal(t, shared.ApprovalApprove, repo.history[0].Action)

	_, err = svc.Act(ctx, admin, ActInput{ID: a.ID, Action: ActionDeny})
	require.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestDenyLeavesRoleUntouched(t *testing.T) {
	repo := newMockRepository()
	org := uuid.New()
	repo.orgs[org] = "Acme"
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	user := &shared.Principal{UserID: uuid.New(), Role: shared.RoleStudent}

	a, err := svc.Apply(ctx, user, ApplyInput{OrganizationID: org, Role: shared.RoleRecruiter})
	require.NoError(t, err)
	decided, err := svc.Act(ctx, &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}, ActInput{ID: a.ID, Action: ActionDeny, Notes: "not on staff list"})
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, decided.Status)
	_, granted := repo.assignments[user.UserID]
	assert.False(t, granted)
}

func TestApproveOwnApplicationIsRejected(t *testing.T) {
	repo := newMockRepository()
	org := uuid.New()
	repo.orgs[org] = "Acme"
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	admin := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}
	repo.assignments[admin.UserID] = roles.Assignment{UserID: admin.UserID, Role: shared.RoleAdmin}

	a, err := svc.Apply(ctx, admin, ApplyInput{OrganizationID: org, Role: shared.RoleFaculty})
	require.NoError(t, err)
	_, err = svc.Act(ctx, admin, ActInput{ID: a.ID, Action: ActionApprove})
	require.ErrorIs(t, err, roles.ErrSelfChange)

	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestApproveAdminApplicantKeepsAdminRole(t *testing.T) {
	for _, notes := range []string{"", "Welcome to the department"} {
		t.Run(notes, func(t *testing.T) {
			repo := newMockRepository()
			org := uuid.New()
			repo.orgs[org] = "Physics"
			svc := NewService(repo, nil, nil, nil, nil)
			ctx := context.Background()
			applicant := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}
			repo.assignments[applicant.UserID] = roles.Assignment{UserID: applicant.UserID, Role: shared.RoleAdmin}
			reviewer := &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}

			a, err := svc.Apply(ctx, applicant, ApplyInput{OrganizationID: org, Role: shared.RoleFaculty})
			require.NoError(t, err)
			decided, err := svc.Act(ctx, reviewer, ActInput{ID: a.ID, Action: ActionApprove, Notes: notes})
			require.NoError(t, err)

			assert.Equal(t, StatusApproved, decided.Status)
			assert.Equal(t, shared.RoleAdmin, repo.assignments[applicant.UserID].Role)
			require.Len(t, repo.history, 1)
		})
	}
}

func TestApproveKeepsExistingNonStudentRole(t *testing.T) {
	repo := newMockRepository()
	org := uuid.New()
	repo.orgs[org] = "Acme"
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	applicant := &shared.Principal{UserID: uuid.New(), Role: shared.RoleFaculty}
	repo.assignments[applicant.UserID] = roles.Assignment{UserID: applicant.UserID, Role: shared.RoleFaculty}

	a, err := svc.Apply(ctx, applicant, ApplyInput{OrganizationID: org, Role: shared.RoleRecruiter})
	require.NoError(t, err)
	_, err = svc.Act(ctx, &shared.Principal{UserID: uuid.New(), Role: shared.RoleAdmin}, ActInput{ID: a.ID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, shared.RoleFaculty, repo.assignments[applicant.UserID].Role)
}

func TestGrantsRoleOnlyForStudents(t *testing.T) {
	assert.True(t, grantsRole(roles.Assignment{Role: shared.RoleStudent}))
	assert.True(t, grantsRole(roles.Assignment{}))
	for _, r := range []shared.Role{shared.RoleFaculty, shared.RoleRecruiter, shared.RoleAdmin} {
		assert.False(t, grantsRole(roles.Assignment{Role: r}), r)
	}
}

func TestApplyUnknownOrganization(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil, nil, nil)
	_, err := svc.Apply(context.Background(), &shared.Principal{UserID: uuid.New()}, ApplyInput{OrganizationID: uuid.New(), Role: shared.RoleFaculty})
	require.ErrorIs(t, err, ErrUnknownOrg)
}

func TestListValidatesFilters(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil, nil, nil)
	_, _, err := svc.List(context.Background(), ListFilter{Role: shared.RoleAdmin})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, _, err = svc.List(context.Background(), ListFilter{Status: StatusDenied})
	require.NoError(t, err)
}
