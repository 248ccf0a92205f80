package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) UsersByRole(ctx context.Context) (map[string]int, error) {
	return r.grouped(ctx, `SELECT COALESCE(ur.role, 'student'), COUNT(*)
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id
GROUP BY 1`)
}

func (r *repository) CertificatesByStatus(ctx context.Context) (map[string]int, error) {
	return r.grouped(ctx, `SELECT verification_status, COUNT(*) FROM certificates GROUP BY 1`)
}

func (r *repository) CountAutoApproved(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM certificates WHERE auto_approved`)
}

func (r *repository) CountPendingRoleRequests(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM role_requests WHERE status = 'pending'`)
}

func (r *repository) CountPendingFacultyApprovals(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM faculty_approvals WHERE approval_status = 'pending'`)
}

func (r *repository) CountIssuedCredentials(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM credentials WHERE revoked_at IS NULL`)
}

func (r *repository) CountOrganizations(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM organizations WHERE is_active`)
}

func (r *repository) count(ctx context.Context, sql string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

func (r *repository) grouped(ctx context.Context, sql string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}
