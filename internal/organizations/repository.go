package organizations

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Organization, int, error)
	Get(ctx context.Context, id uuid.UUID) (Organization, error)
	Create(ctx context.Context, org Organization) (Organization, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectOrganization = `SELECT o.id, o.name, o.slug, o.type, COALESCE(o.contact_email, ''), COALESCE(o.contact_phone, ''),
	COALESCE(o.website, ''), o.is_active, o.is_verified,
	(SELECT COUNT(*) FROM faculty_approvals fa WHERE fa.organization_id = o.id AND fa.approval_status = 'approved'),
	o.created_at
FROM organizations o`

// List builds the query dynamically because every filter is optional.
func (r *repository) List(ctx context.Context, filters ListFilters) ([]Organization, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (o.name ILIKE $` + n + ` OR o.slug ILIKE $` + n + `)`
	}
	if filters.Type != "" {
		args = append(args, string(filters.Type))
		where += ` AND o.type = $` + strconv.Itoa(len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND o.is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM organizations o`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectOrganization + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, (filters.Page-1)*filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, 0, err
		}
		orgs = append(orgs, o)
	}
	return orgs, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	o, err := scanOrganization(r.pool.QueryRow(ctx, selectOrganization+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return o, err
}

func (r *repository) Create(ctx context.Context, org Organization) (Organization, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO organizations (id, name, slug, type, contact_email, contact_phone, website, is_active, is_verified, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), TRUE, FALSE, NOW())
RETURNING created_at`, org.ID, org.Name, org.Slug, string(org.Type), org.ContactEmail, org.ContactPhone, org.Website).Scan(&org.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Organization{}, ErrSlugTaken
		}
		return Organization{}, err
	}
	org.IsActive = true
	return org, nil
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var (
		o   Organization
		typ string
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &typ, &o.ContactEmail, &o.ContactPhone, &o.Website,
		&o.IsActive, &o.IsVerified, &o.MemberCount, &o.CreatedAt); err != nil {
		return Organization{}, err
	}
	o.Type = Type(typ)
	return o, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "slug":
		return "o.slug " + dir
	case "created_at":
		return "o.created_at " + dir
	default:
		return "o.name " + dir
	}
}
