package roles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

const defaultTicketTTL = 5 * time.Minute

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Get(ctx context.Context, userID uuid.UUID) (Assignment, error)
	List(ctx context.Context, filter ListFilter) ([]Assignment, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service handles role business logic.
type Service struct {
	repo      RepositoryPort
	tickets   TicketStore
	cache     shared.CacheInvalidator
	logger    *slog.Logger
	ticketTTL time.Duration
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, tickets TicketStore, cache shared.CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tickets: tickets, cache: cache, logger: logger, ticketTTL: defaultTicketTTL, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns the assignment for a user.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Assignment, error) {
	return s.repo.Get(ctx, userID)
}

// List returns paginated assignments.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Assignment, shared.Pagination, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, shared.Pagination{}, ErrInvalidRole
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page = shared.NormalisePage(filter.Page.Page, filter.Page.PerPage)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total), nil
}

// Change performs a guarded role change. The guard runs against the locked
// current assignment, so a rejected change never writes.
func (s *Service) Change(ctx context.Context, actor *shared.Principal, in ChangeInput) (Assignment, error) {
	return s.change(ctx, actor, in, "role.change")
}

// Assign sets a user's role through the same guard as Change.
func (s *Service) Assign(ctx context.Context, actor *shared.Principal, in ChangeInput) (Assignment, error) {
	return s.change(ctx, actor, in, "role.assign")
}

func (s *Service) change(ctx context.Context, actor *shared.Principal, in ChangeInput, action string) (Assignment, error) {
	if actor == nil {
		return Assignment{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Assignment{}, err
	}
	var (
		result  Assignment
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockAssignment(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := CheckChange(ChangeRequest{ActorID: actor.UserID, Target: current, NewRole: in.NewRole, Reason: in.Reason}); err != nil {
			return err
		}
		if current.Role == in.NewRole {
			result = current
			return nil
		}
		result, err = tx.Upsert(ctx, in.UserID, in.NewRole, actor.UserID)
		if err != nil {
			return err
		}
		changed = true
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   action,
			Entity:   "user_role",
			EntityID: in.UserID.String(),
			Meta: map[string]any{
				"from":   string(current.Role),
				"to":     string(in.NewRole),
				"reason": strings.TrimSpace(in.Reason),
			},
			At: s.now().UTC(),
		})
	})
	if err != nil {
		return Assignment{}, err
	}
	if changed {
		s.logger.Info("role changed",
			slog.String("actor_id", actor.UserID.String()),
			slog.String("user_id", in.UserID.String()),
			slog.String("to", string(in.NewRole)))
		s.bump(ctx)
	}
	return result, nil
}

// Remove deletes the stored assignment; the user falls back to student.
func (s *Service) Remove(ctx context.Context, actor *shared.Principal, in RemoveInput) error {
	if actor == nil {
		return shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockAssignment(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := CheckChange(ChangeRequest{ActorID: actor.UserID, Target: current, NewRole: shared.RoleStudent, Reason: in.Reason}); err != nil {
			return err
		}
		if current.CreatedAt == nil {
			return nil
		}
		if err := tx.Delete(ctx, in.UserID); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "role.remove",
			Entity:   "user_role",
			EntityID: in.UserID.String(),
			Meta:     map[string]any{"from": string(current.Role), "reason": strings.TrimSpace(in.Reason)},
			At:       s.now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// RequestChange validates a prospective change and returns a confirmation
// ticket. Nothing is written to the assignment until ConfirmChange.
func (s *Service) RequestChange(ctx context.Context, actor *shared.Principal, in RequestChangeInput) (ChangeTicket, error) {
	if actor == nil {
		return ChangeTicket{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return ChangeTicket{}, err
	}
	current, err := s.repo.Get(ctx, in.UserID)
	if err != nil {
		return ChangeTicket{}, err
	}
	if err := CheckTransition(ChangeRequest{ActorID: actor.UserID, Target: current, NewRole: in.NewRole}); err != nil {
		return ChangeTicket{}, err
	}
	token, err := newTicketToken()
	if err != nil {
		return ChangeTicket{}, err
	}
	ticket := ChangeTicket{
		Token:                 token,
		ActorID:               actor.UserID,
		UserID:                in.UserID,
		CurrentRole:           current.Role,
		NewRole:               in.NewRole,
		RequiresJustification: RequiresJustification(current.Role, in.NewRole),
		ExpiresAt:             s.now().UTC().Add(s.ticketTTL),
	}
	if err := s.tickets.Save(ctx, ticket, s.ticketTTL); err != nil {
		return ChangeTicket{}, err
	}
	return ticket, nil
}

// ConfirmChange consumes a ticket and performs the guarded change with the
// supplied justification. Tickets are single use.
func (s *Service) ConfirmChange(ctx context.Context, actor *shared.Principal, in ConfirmChangeInput) (Assignment, error) {
	if actor == nil {
		return Assignment{}, shared.ErrUnauthenticated
	}
	if err := httpx.Validate(in); err != nil {
		return Assignment{}, err
	}
	ticket, err := s.tickets.Take(ctx, in.Token)
	if err != nil {
		return Assignment{}, err
	}
	if ticket.ActorID != actor.UserID || s.now().UTC().After(ticket.ExpiresAt) {
		return Assignment{}, ErrTicketInvalid
	}
	return s.change(ctx, actor, ChangeInput{UserID: ticket.UserID, NewRole: ticket.NewRole, Reason: in.Justification}, "role.change")
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump analytics cache", slog.Any("error", err))
	}
}
