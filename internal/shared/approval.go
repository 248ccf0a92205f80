package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates review log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
)

// Review log modules.
const (
	ModuleRoleRequest     = "role_request"
	ModuleFacultyApproval = "faculty_approval"
	ModuleCertificate     = "certificate"
)

// ApprovalLog represents a single review decision.
type ApprovalLog struct {
	ID      int64          `json:"id"`
	Module  string         `json:"module"`
	RefID   uuid.UUID      `json:"ref_id"`
	ActorID uuid.UUID      `json:"actor_id"`
	Action  ApprovalAction `json:"action"`
	Note    string         `json:"note,omitempty"`
	At      time.Time      `json:"at"`
}

// ApprovalRecorder persists review history.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record writes a review entry outside of any transaction.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if err := WriteApproval(ctx, r.pool, log); err != nil {
		r.logger.Error("record approval", slog.String("module", log.Module), slog.Any("error", err))
		return err
	}
	return nil
}

// WriteApproval inserts a review entry using exec.
func WriteApproval(ctx context.Context, exec Execer, log ApprovalLog) error {
	if log.Module == "" {
		return errors.New("approval module required")
	}
	if log.ActorID == uuid.Nil {
		return errors.New("approval actor required")
	}
	if log.RefID == uuid.Nil {
		return errors.New("approval ref id required")
	}
	if log.Action == "" {
		return errors.New("approval action required")
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := exec.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Module, log.RefID, log.ActorID, string(log.Action), log.Note, at)
	return err
}

// List returns review history for module/ref.
func (r *ApprovalRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, note, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
