package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

const progressColumns = `id, user_id, checkpoint_id, mode, started_at, completed_at, paused_at,
	is_paused, accumulated_seconds, duration_seconds, updated_at`

func scanProgress(row interface{ Scan(dest ...any) error }) (*models.Progress, error) {
	p := &models.Progress{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.CheckpointID, &p.Mode, &p.StartedAt, &p.CompletedAt,
		&p.PausedAt, &p.IsPaused, &p.AccumulatedSeconds, &p.DurationSeconds, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) Get(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	return scanProgress(r.pool.QueryRow(ctx,
		"SELECT "+progressColumns+" FROM progress WHERE user_id = $1 AND checkpoint_id = $2 AND mode = $3",
		userID, checkpointID, mode))
}

// GetOrCreate returns the row for (user, checkpoint, mode), inserting a
// fresh one when none exists. The unique constraint makes concurrent
// first-starts converge on a single row.
func (r *ProgressRepo) GetOrCreate(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	return scanProgress(r.pool.QueryRow(ctx, `
		INSERT INTO progress (user_id, checkpoint_id, mode)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, checkpoint_id, mode) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+progressColumns,
		userID, checkpointID, mode))
}

// Save writes every mutable field back. Timer math happens in the service;
// the repo only persists the outcome.
func (r *ProgressRepo) Save(ctx context.Context, p *models.Progress) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE progress SET started_at = $1, completed_at = $2, paused_at = $3,
			is_paused = $4, accumulated_seconds = $5, duration_seconds = $6, updated_at = NOW()
		WHERE id = $7
	`, p.StartedAt, p.CompletedAt, p.PausedAt, p.IsPaused,
		p.AccumulatedSeconds, p.DurationSeconds, p.ID)
	return err
}

func (r *ProgressRepo) ListForUserSession(ctx context.Context, userID, sessionID uuid.UUID, mode string) ([]*models.Progress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+progressColumns+` FROM progress
		WHERE user_id = $1 AND mode = $2
		  AND checkpoint_id IN (
			SELECT id FROM checkpoints WHERE session_id = $3 AND deleted_at IS NULL)
		ORDER BY updated_at
	`, userID, mode, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.Progress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// SweepExpiredPaused force-stops every row of the user that has been
// paused for 30 minutes or more. Paused time is already banked, so the
// accumulated value does not move; re-running the sweep changes nothing.
func (r *ProgressRepo) SweepExpiredPaused(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE progress SET started_at = NULL, paused_at = NULL, is_paused = FALSE,
			duration_seconds = accumulated_seconds, updated_at = NOW()
		WHERE user_id = $1 AND is_paused = TRUE AND paused_at <= $2
	`, userID, now.Add(-models.AutoStopAfter))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BulkStopLiveForSession folds the open run of every running live-mode
// row under the session's checkpoints and stops it. Called when the
// instructor ends a live class.
func (r *ProgressRepo) BulkStopLiveForSession(ctx context.Context, sessionID uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE progress SET
			accumulated_seconds = accumulated_seconds +
				CASE WHEN started_at IS NOT NULL AND NOT is_paused
				     THEN GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at))::int)
				     ELSE 0 END,
			duration_seconds = accumulated_seconds +
				CASE WHEN started_at IS NOT NULL AND NOT is_paused
				     THEN GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at))::int)
				     ELSE 0 END,
			started_at = NULL, paused_at = NULL, is_paused = FALSE, updated_at = NOW()
		WHERE mode = 'live' AND started_at IS NOT NULL
		  AND checkpoint_id IN (
			SELECT id FROM checkpoints WHERE session_id = $1 AND deleted_at IS NULL)
	`, sessionID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ProgressExportRow is one line of the instructor's CSV export: a
// student's state on one checkpoint.
type ProgressExportRow struct {
	FullName        string
	Email           string
	CheckpointTitle string
	Seq             int
	Completed       bool
	Seconds         int
}

func (r *ProgressRepo) ExportRows(ctx context.Context, sessionID uuid.UUID, mode string) ([]ProgressExportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.full_name, u.email, c.title, c.seq,
		       p.completed_at IS NOT NULL,
		       COALESCE(p.duration_seconds, p.accumulated_seconds)
		FROM progress p
		JOIN checkpoints c ON c.id = p.checkpoint_id
		JOIN users u ON u.id = p.user_id
		WHERE c.session_id = $1 AND c.deleted_at IS NULL AND p.mode = $2
		ORDER BY u.full_name, c.seq
	`, sessionID, mode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ProgressExportRow, 0)
	for rows.Next() {
		var row ProgressExportRow
		if err := rows.Scan(&row.FullName, &row.Email, &row.CheckpointTitle,
			&row.Seq, &row.Completed, &row.Seconds); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SessionStats aggregates completion and elapsed time per checkpoint for
// the instructor's live dashboard.
type CheckpointStat struct {
	CheckpointID   uuid.UUID `json:"checkpoint_id"`
	CompletedCount int       `json:"completed_count"`
	RunningCount   int       `json:"running_count"`
	AvgSeconds     float64   `json:"avg_seconds"`
}

func (r *ProgressRepo) SessionStats(ctx context.Context, sessionID uuid.UUID, mode string) ([]CheckpointStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id,
		       COUNT(p.id) FILTER (WHERE p.completed_at IS NOT NULL),
		       COUNT(p.id) FILTER (WHERE p.started_at IS NOT NULL AND NOT p.is_paused),
		       COALESCE(AVG(p.accumulated_seconds) FILTER (WHERE p.completed_at IS NOT NULL), 0)
		FROM checkpoints c
		LEFT JOIN progress p ON p.checkpoint_id = c.id AND p.mode = $2
		WHERE c.session_id = $1 AND c.deleted_at IS NULL
		GROUP BY c.id, c.seq
		ORDER BY c.seq
	`, sessionID, mode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]CheckpointStat, 0)
	for rows.Next() {
		var st CheckpointStat
		if err := rows.Scan(&st.CheckpointID, &st.CompletedCount, &st.RunningCount, &st.AvgSeconds); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
