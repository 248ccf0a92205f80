package rolerequests

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

// RepositoryPort defines data access for role requests.
type RepositoryPort interface {
	Create(ctx context.Context, userID uuid.UUID, role shared.Role, metadata map[string]any) (Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service implements role request intake and review.
type Service struct {
	repo     RepositoryPort
	locks    *shared.ActionLock
	cache    shared.CacheInvalidator
	notifier shared.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service. locks, cache and notifier may be nil.
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

// Create files a new pending request for the principal.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in CreateInput) (Request, error) {
	if actor == nil {
		return Request{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Request{}, err
	}
	if actor.Role == in.RequestedRole {
		return Request{}, ErrSameRole
	}
	req, err := s.repo.Create(ctx, actor.UserID, in.RequestedRole, in.Metadata)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("role request created",
		slog.String("request_id", req.ID.String()),
		slog.String("user_id", actor.UserID.String()),
		slog.String("role", string(in.RequestedRole)))
	s.bump(ctx)
	return req, nil
}

// ListMine returns the principal's own requests.
func (s *Service) ListMine(ctx context.Context, actor *shared.Principal, page shared.PageRequest) ([]Request, shared.Pagination, error) {
	if actor == nil {
		return nil, shared.Pagination{}, shared.ErrUnauthenticated
	}
	id := actor.UserID
	return s.List(ctx, ListFilter{UserID: &id, Page: page})
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, ErrInvalidFilter
	}
	if filter.RequestedRole != "" && !filter.RequestedRole.Valid() {
		return nil, shared.Pagination{}, ErrInvalidFilter
	}
	filter.Page = shared.NormalisePage(filter.Page.Page, filter.Page.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, id)
}

// Approve grants the requested role and closes the request.
func (s *Service) Approve(ctx context.Context, actor *shared.Principal, id uuid.UUID, in ReviewInput) (Request, error) {
	return s.review(ctx, actor, id, DecisionApprove, in)
}

// Deny closes the request without touching the user's role.
func (s *Service) Deny(ctx context.Context, actor *shared.Principal, id uuid.UUID, in ReviewInput) (Request, error) {
	return s.review(ctx, actor, id, DecisionDeny, in)
}

func (s *Service) review(ctx context.Context, actor *shared.Principal, id uuid.UUID, decision Decision, in ReviewInput) (Request, error) {
	if actor == nil {
		return Request{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Request{}, err
	}
	release, err := s.locks.Acquire(ctx, shared.ModuleRoleRequest, id)
	if err != nil {
		return Request{}, err
	}
	defer release()

	notes := strings.TrimSpace(in.Notes)
	status, action := StatusRejected, shared.ApprovalReject
	if decision == DecisionApprove {
		status, action = StatusApproved, shared.ApprovalApprove
	}
	at := s.now().UTC()

	var result Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.MarkReviewed(ctx, id, status, actor.UserID, notes, at)
		if err != nil {
			return err
		}
		if decision == DecisionApprove {
			current, err := tx.LockAssignment(ctx, req.UserID)
			if err != nil {
				return err
			}
			if err := roles.CheckChange(roles.ChangeRequest{
				ActorID: actor.UserID,
				Target:  current,
				NewRole: req.RequestedRole,
				Reason:  notes,
			}); err != nil {
				return err
			}
			if err := tx.ApplyRole(ctx, req.UserID, req.RequestedRole, actor.UserID); err != nil {
				return err
			}
		}
		if err := tx.InsertApproval(ctx, shared.ApprovalLog{
			Module:  shared.ModuleRoleRequest,
			RefID:   id,
			ActorID: actor.UserID,
			Action:  action,
			Note:    notes,
			At:      at,
		}); err != nil {
			return err
		}
		result = req
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "role_request." + string(status),
			Entity:   "role_request",
			EntityID: id.String(),
			Meta: map[string]any{
				"user_id": req.UserID.String(),
				"role":    string(req.RequestedRole),
				"notes":   notes,
			},
			At: at,
		})
	})
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("role request reviewed",
		slog.String("request_id", id.String()),
		slog.String("reviewer_id", actor.UserID.String()),
		slog.String("status", string(status)))
	s.bump(ctx)
	s.notify(ctx, result)
	return result, nil
}

func (s *Service) notify(ctx context.Context, req Request) {
	if s.notifier == nil || req.Email == "" {
		return
	}
	notice := shared.ReviewNotice{
		Module:  shared.ModuleRoleRequest,
		To:      req.Email,
		Subject: fmt.Sprintf("Your %s role request was %s", req.RequestedRole, req.Status),
		Body:    fmt.Sprintf("Hello %s,\n\nYour request for the %s role has been %s.", req.DisplayName, req.RequestedRole, req.Status),
	}
	if req.ReviewNotes != nil && *req.ReviewNotes != "" {
		notice.Body += "\n\nReviewer notes: " + *req.ReviewNotes
	}
	if err := s.notifier.NotifyReview(ctx, notice); err != nil {
		s.logger.Warn("enqueue review notice", slog.String("request_id", req.ID.String()), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump analytics cache", slog.Any("error", err))
	}
}
