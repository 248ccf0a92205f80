package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorID != nil {
		add("a.actor_id = $%d", *f.ActorID)
	}
	if f.Entity != "" {
		add("a.entity = $%d", f.Entity)
	}
	if f.EntityID != "" {
		add("a.entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("a.action = $%d", f.Action)
	}
	if !f.From.IsZero() {
		add("a.occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("a.occurred_at < $%d", f.To)
	}
	sql := `SELECT a.id, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta, a.occurred_at, COUNT(*) OVER()
FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY a.occurred_at DESC, a.id DESC"
	if limit > 0 {
		args = append(args, limit, offset)
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Entry
		total int
	)
	for rows.Next() {
		var (
			e     Entry
			actor *uuid.UUID
			meta  []byte
		)
		if err := rows.Scan(&e.ID, &actor, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &meta, &e.OccurredAt, &total); err != nil {
			return nil, 0, err
		}
		e.ActorID = actor
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, 0, err
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
