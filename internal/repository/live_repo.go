package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type LiveRepo struct {
	pool *pgxpool.Pool
}

func NewLiveRepo(pool *pgxpool.Pool) *LiveRepo {
	return &LiveRepo{pool: pool}
}

func (r *LiveRepo) Create(ctx context.Context, lc *models.LiveClass) error {
	lc.ID = uuid.New()
	lc.LiveStatus = models.LiveStatusPreparing

	return r.pool.QueryRow(ctx, `
		INSERT INTO live_classes (id, session_id, live_status, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, lc.ID, lc.SessionID, lc.LiveStatus, lc.ScheduledAt).Scan(&lc.CreatedAt)
}

// GetLatestForSession returns the most recent live class run for a session.
func (r *LiveRepo) GetLatestForSession(ctx context.Context, sessionID uuid.UUID) (*models.LiveClass, error) {
	lc := &models.LiveClass{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, live_status, scheduled_at, started_at, ended_at, current_checkpoint_id, created_at
		FROM live_classes WHERE session_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, sessionID).Scan(&lc.ID, &lc.SessionID, &lc.LiveStatus, &lc.ScheduledAt,
		&lc.StartedAt, &lc.EndedAt, &lc.CurrentCheckpointID, &lc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return lc, nil
}

// TransitionStatus moves a live class from one status to another with a
// guard in the WHERE clause, so two racing requests cannot both win.
func (r *LiveRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error) {
	query := "UPDATE live_classes SET live_status = $1 WHERE id = $2 AND live_status = $3"
	switch to {
	case models.LiveStatusLive:
		query = "UPDATE live_classes SET live_status = $1, started_at = $4 WHERE id = $2 AND live_status = $3"
	case models.LiveStatusEnded:
		query = "UPDATE live_classes SET live_status = $1, ended_at = $4 WHERE id = $2 AND live_status = $3"
	default:
		tag, err := r.pool.Exec(ctx, query, to, id, from)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := r.pool.Exec(ctx, query, to, id, from, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LiveRepo) SetCurrentCheckpoint(ctx context.Context, id uuid.UUID, checkpointID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE live_classes SET current_checkpoint_id = $1 WHERE id = $2", checkpointID, id)
	return err
}
