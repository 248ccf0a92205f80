package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/shared"
)

// exportLimit caps CSV exports.
const exportLimit = 5000

var historyModules = map[string]bool{
	shared.ModuleRoleRequest:     true,
	shared.ModuleFacultyApproval: true,
	shared.ModuleCertificate:     true,
}

// Repository reads audit_logs.
type Repository interface {
	List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error)
}

// HistorySource returns review history for one item.
type HistorySource interface {
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Service answers audit timeline and review history queries.
type Service struct {
	repo    Repository
	history HistorySource
}

// NewService builds Service.
func NewService(repo Repository, history HistorySource) *Service {
	return &Service{repo: repo, history: history}
}

// List returns one page of the timeline, newest first.
func (s *Service) List(ctx context.Context, f Filters) ([]Entry, shared.Pagination, error) {
	if err := normalise(&f); err != nil {
		return nil, shared.Pagination{}, err
	}
	f.Page = shared.NormalisePage(f.Page.Page, f.Page.PerPage)
	items, total, err := s.repo.List(ctx, f, f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Export returns up to exportLimit rows for the filters.
func (s *Service) Export(ctx context.Context, f Filters) ([]Entry, error) {
	if err := normalise(&f); err != nil {
		return nil, err
	}
	items, _, err := s.repo.List(ctx, f, exportLimit, 0)
	return items, err
}

// History returns the review decisions recorded for module/ref in order.
func (s *Service) History(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	if !historyModules[module] {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidFilter, module)
	}
	logs, err := s.history.List(ctx, module, ref)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

func normalise(f *Filters) error {
	f.Entity = strings.TrimSpace(f.Entity)
	f.EntityID = strings.TrimSpace(f.EntityID)
	f.Action = strings.TrimSpace(f.Action)
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return fmt.Errorf("%w: from must be before to", ErrInvalidFilter)
	}
	return nil
}
