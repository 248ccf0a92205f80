package organizations

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	cache  shared.CacheInvalidator
	logger *slog.Logger
}

func NewService(repo Repository, audit *shared.AuditLogger, cache shared.CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Organization, shared.Pagination, error) {
	page := shared.NormalisePage(filters.Page, filters.Limit)
	filters.Page, filters.Limit = page.Page, page.PerPage
	filters.Search = strings.TrimSpace(filters.Search)
	orgs, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orgs, shared.NewPagination(page.Page, page.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new organization. Callers restrict this to super-admins.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, in CreateInput) (Organization, error) {
	if actor == nil {
		return Organization{}, shared.ErrUnauthenticated
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(in); err != nil {
		return Organization{}, err
	}
	slug := in.Slug
	if slug == "" {
		slug = in.Name
	}
	slug = Slugify(slug)
	if slug == "" {
		return Organization{}, ErrInvalidSlug
	}
	org, err := s.repo.Create(ctx, Organization{
		ID:           uuid.New(),
		Name:         in.Name,
		Slug:         slug,
		Type:         in.Type,
		ContactEmail: strings.ToLower(strings.TrimSpace(in.ContactEmail)),
		ContactPhone: strings.TrimSpace(in.ContactPhone),
		Website:      strings.TrimSpace(in.Website),
	})
	if err != nil {
		return Organization{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "organization.create",
			Entity:   "organization",
			EntityID: org.ID.String(),
			Meta:     map[string]any{"name": org.Name, "slug": org.Slug},
		}); err != nil {
			s.logger.Warn("audit organization create", slog.Any("error", err))
		}
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	return org, nil
}
