package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type AttendanceRepo struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepo {
	return &AttendanceRepo{pool: pool}
}

// Upsert records or overwrites the user's attendance for a session run.
// A later check-in or an instructor correction replaces the old status.
func (r *AttendanceRepo) Upsert(ctx context.Context, a *models.Attendance) error {
	a.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO attendance (id, session_id, user_id, live_class_id, status, checked_at, checked_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, user_id, live_class_id) DO UPDATE
		SET status = EXCLUDED.status, checked_at = EXCLUDED.checked_at,
			checked_by = EXCLUDED.checked_by, notes = EXCLUDED.notes
		RETURNING id
	`, a.ID, a.SessionID, a.UserID, a.LiveClassID, a.Status, a.CheckedAt, a.CheckedBy, a.Notes,
	).Scan(&a.ID)
}

func (r *AttendanceRepo) Get(ctx context.Context, sessionID, userID uuid.UUID, liveClassID *uuid.UUID) (*models.Attendance, error) {
	a := &models.Attendance{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, live_class_id, status, checked_at, checked_by, notes
		FROM attendance
		WHERE session_id = $1 AND user_id = $2 AND live_class_id IS NOT DISTINCT FROM $3
	`, sessionID, userID, liveClassID).Scan(
		&a.ID, &a.SessionID, &a.UserID, &a.LiveClassID, &a.Status, &a.CheckedAt, &a.CheckedBy, &a.Notes)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AttendanceRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.session_id, a.user_id, a.live_class_id, a.status, a.checked_at, a.checked_by, a.notes,
		       u.full_name, u.email
		FROM attendance a
		JOIN users u ON u.id = a.user_id
		WHERE a.session_id = $1
		ORDER BY u.full_name, a.checked_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.AttendanceRecord, 0)
	for rows.Next() {
		rec := &models.AttendanceRecord{}
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.LiveClassID,
			&rec.Status, &rec.CheckedAt, &rec.CheckedBy, &rec.Notes,
			&rec.FullName, &rec.Email); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
