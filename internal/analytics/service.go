package analytics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Overview is the platform summary shown on the admin dashboard.
type Overview struct {
	UsersByRole              map[string]int `json:"users_by_role"`
	CertificatesByStatus     map[string]int `json:"certificates_by_status"`
	AutoApprovedCertificates int            `json:"auto_approved_certificates"`
	PendingRoleRequests      int            `json:"pending_role_requests"`
	PendingFacultyApprovals  int            `json:"pending_faculty_approvals"`
	IssuedCredentials        int            `json:"issued_credentials"`
	Organizations            int            `json:"organizations"`
	GeneratedAt              time.Time      `json:"generated_at"`
}

// Repository exposes the aggregate queries behind the overview.
type Repository interface {
	UsersByRole(ctx context.Context) (map[string]int, error)
	CertificatesByStatus(ctx context.Context) (map[string]int, error)
	CountAutoApproved(ctx context.Context) (int, error)
	CountPendingRoleRequests(ctx context.Context) (int, error)
	CountPendingFacultyApprovals(ctx context.Context) (int, error)
	CountIssuedCredentials(ctx context.Context) (int, error)
	CountOrganizations(ctx context.Context) (int, error)
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Overview returns the cached overview for the current cache version.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	key, err := s.cache.BuildKey(ctx, "campussync", "analytics", "overview")
	if err != nil {
		return Overview{}, err
	}
	var out Overview
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.load(ctx)
	})
	return out, err
}

// Bump invalidates every cached aggregate.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm fills the cache for the current version.
func (s *Service) Warm(ctx context.Context) error {
	ov, err := s.Overview(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("analytics cache warmed",
		slog.Int("pending_role_requests", ov.PendingRoleRequests),
		slog.Int("issued_credentials", ov.IssuedCredentials))
	return nil
}

func (s *Service) load(ctx context.Context) (Overview, error) {
	ov := Overview{GeneratedAt: s.now().UTC()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ov.UsersByRole, err = s.repo.UsersByRole(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.CertificatesByStatus, err = s.repo.CertificatesByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.AutoApprovedCertificates, err = s.repo.CountAutoApproved(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.PendingRoleRequests, err = s.repo.CountPendingRoleRequests(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.PendingFacultyApprovals, err = s.repo.CountPendingFacultyApprovals(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.IssuedCredentials, err = s.repo.CountIssuedCredentials(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.Organizations, err = s.repo.CountOrganizations(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}
