package facultyapprovals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/roles"
	"github.com/campussync/campussync/internal/shared"
)

// RepositoryPort defines data access for faculty approvals.
type RepositoryPort interface {
	Create(ctx context.Context, userID, orgID uuid.UUID, role shared.Role) (Approval, error)
	Get(ctx context.Context, id uuid.UUID) (Approval, error)
	List(ctx context.Context, filter ListFilter) ([]Approval, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service implements organization membership approvals.
type Service struct {
	repo     RepositoryPort
	locks    *shared.ActionLock
	cache    shared.CacheInvalidator
	notifier shared.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service.
func NewService(repo RepositoryPort, locks *shared.ActionLock, cache shared.CacheInvalidator, notifier shared.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locks: locks, cache: cache, notifier: notifier, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Apply files a pending membership application for the principal.
func (s *Service) Apply(ctx context.Context, actor *shared.Principal, in ApplyInput) (Approval, error) {
	if actor == nil {
		return Approval{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Approval{}, err
	}
	a, err := s.repo.Create(ctx, actor.UserID, in.OrganizationID, in.Role)
	if err != nil {
		return Approval{}, err
	}
	s.bump(ctx)
	return a, nil
}

// List returns approvals filtered by status, role and organization.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Approval, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, ErrInvalidFilter
	}
	if filter.Role != "" && filter.Role != shared.RoleFaculty && filter.Role != shared.RoleRecruiter {
		return nil, shared.Pagination{}, ErrInvalidFilter
	}
	filter.Page = shared.NormalisePage(filter.Page.Page, filter.Page.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Get returns a single approval.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Approval, error) {
	return s.repo.Get(ctx, id)
}

// Act approves or denies a pending application. Approval grants the role
// through the role change guard in the same transaction, but only to a
// student: a user already holding a role keeps it and the membership is
// recorded without touching their assignment.
func (s *Service) Act(ctx context.Context, actor *shared.Principal, in ActInput) (Approval, error) {
	if actor == nil {
		return Approval{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Approval{}, err
	}
	release, err := s.locks.Acquire(ctx, shared.ModuleFacultyApproval, in.ID)
	if err != nil {
		return Approval{}, err
	}
	defer release()

	notes := strings.TrimSpace(in.Notes)
	status, logAction := StatusDenied, shared.ApprovalReject
	if in.Action == ActionApprove {
		status, logAction = StatusApproved, shared.ApprovalApprove
	}
	at := s.now().UTC()

	var (
		result  Approval
		granted bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.Decide(ctx, in.ID, status, actor.UserID, notes, at)
		if err != nil {
			return err
		}
		if a.UserID == actor.UserID {
			return roles.ErrSelfChange
		}
		if in.Action == ActionApprove {
			current, err := tx.LockAssignment(ctx, a.UserID)
			if err != nil {
				return err
			}
			if grantsRole(current) {
				if err := roles.CheckChange(roles.ChangeRequest{ActorID: actor.UserID, Target: current, NewRole: a.Role}); err != nil {
					return err
				}
				if err := tx.ApplyRole(ctx, a.UserID, a.Role, actor.UserID); err != nil {
					return err
				}
				granted = true
			}
		}
		if err := tx.InsertApproval(ctx, shared.ApprovalLog{
			Module:  shared.ModuleFacultyApproval,
			RefID:   in.ID,
			ActorID: actor.UserID,
			Action:  logAction,
			Note:    notes,
			At:      at,
		}); err != nil {
			return err
		}
		result = a
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "faculty_approval." + string(status),
			Entity:   "faculty_approval",
			EntityID: in.ID.String(),
			Meta: map[string]any{
				"user_id":         a.UserID.String(),
				"organization_id": a.OrganizationID.String(),
				"role":            string(a.Role),
				"role_granted":    granted,
			},
			At: at,
		})
	})
	if err != nil {
		return Approval{}, err
	}
	s.logger.Info("faculty approval decided",
		slog.String("approval_id", in.ID.String()),
		slog.String("reviewer_id", actor.UserID.String()),
		slog.String("status", string(status)),
		slog.Bool("role_granted", granted))
	s.bump(ctx)
	if s.notifier != nil && result.Email != "" {
		notice := shared.ReviewNotice{
			Module:  shared.ModuleFacultyApproval,
			To:      result.Email,
			Subject: fmt.Sprintf("Your %s application to %s was %s", result.Role, result.OrganizationName, status),
			Body:    fmt.Sprintf("Hello %s,\n\nYour application to join %s as %s has been %s.", result.DisplayName, result.OrganizationName, result.Role, status),
		}
		if err := s.notifier.NotifyReview(ctx, notice); err != nil {
			s.logger.Warn("enqueue review notice", slog.String("approval_id", in.ID.String()), slog.Any("error", err))
		}
	}
	return result, nil
}

// grantsRole reports whether approving a membership changes the user's
// global role. Only students are promoted; any other role is kept as is.
func grantsRole(current roles.Assignment) bool {
	return current.Role == shared.RoleStudent || current.Role == ""
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump analytics cache", slog.Any("error", err))
	}
}
