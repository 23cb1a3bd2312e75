package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type CheckpointRepo struct {
	pool *pgxpool.Pool
}

func NewCheckpointRepo(pool *pgxpool.Pool) *CheckpointRepo {
	return &CheckpointRepo{pool: pool}
}

func (r *CheckpointRepo) Create(ctx context.Context, cp *models.Checkpoint) error {
	cp.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO checkpoints (id, session_id, title, description, estimated_minutes, seq)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, cp.ID, cp.SessionID, cp.Title, cp.Description, cp.EstimatedMinutes, cp.Seq,
	).Scan(&cp.CreatedAt, &cp.UpdatedAt)
}

func (r *CheckpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Checkpoint, error) {
	cp := &models.Checkpoint{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, title, description, estimated_minutes, seq, created_at, updated_at
		FROM checkpoints WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&cp.ID, &cp.SessionID, &cp.Title, &cp.Description,
		&cp.EstimatedMinutes, &cp.Seq, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *CheckpointRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Checkpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, title, description, estimated_minutes, seq, created_at, updated_at
		FROM checkpoints WHERE session_id = $1 AND deleted_at IS NULL
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cps := make([]*models.Checkpoint, 0)
	for rows.Next() {
		cp := &models.Checkpoint{}
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Title, &cp.Description,
			&cp.EstimatedMinutes, &cp.Seq, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

func (r *CheckpointRepo) Update(ctx context.Context, cp *models.Checkpoint) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE checkpoints SET title = $1, description = $2, estimated_minutes = $3, seq = $4, updated_at = NOW()
		WHERE id = $5 AND deleted_at IS NULL
	`, cp.Title, cp.Description, cp.EstimatedMinutes, cp.Seq, cp.ID)
	return err
}

func (r *CheckpointRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE checkpoints SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	return err
}

// Reorder rewrites the sequence numbers of a session's checkpoints to
// match the given ID order. Seqs are parked out of range first so the
// unique (session_id, seq) index never trips mid-shuffle.
func (r *CheckpointRepo) Reorder(ctx context.Context, sessionID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE checkpoints SET seq = seq + 100000
		WHERE session_id = $1 AND deleted_at IS NULL
	`, sessionID); err != nil {
		return err
	}

	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `
			UPDATE checkpoints SET seq = $1, updated_at = NOW()
			WHERE id = $2 AND session_id = $3 AND deleted_at IS NULL
		`, i+1, id, sessionID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// NextSeq hands out the next free sequence number for a session. The
// partial unique index on (session_id, seq) backstops races.
func (r *CheckpointRepo) NextSeq(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints
		WHERE session_id = $1 AND deleted_at IS NULL
	`, sessionID).Scan(&next)
	return next, err
}
