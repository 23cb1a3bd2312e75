package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type AssignmentRepo struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{pool: pool}
}

// Upsert replaces the user's submission for a session; resubmitting before
// the deadline clears any earlier grade.
func (r *AssignmentRepo) Upsert(ctx context.Context, s *models.AssignmentSubmission) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO assignment_submissions (id, session_id, user_id, content, file_path, file_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, user_id) DO UPDATE
		SET content = EXCLUDED.content, file_path = EXCLUDED.file_path,
			file_name = EXCLUDED.file_name, submitted_at = NOW(),
			score = NULL, feedback = NULL, graded_at = NULL, graded_by = NULL
		RETURNING id, submitted_at
	`, s.ID, s.SessionID, s.UserID, s.Content, s.FilePath, s.FileName,
	).Scan(&s.ID, &s.SubmittedAt)
}

func (r *AssignmentRepo) Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.AssignmentSubmission, error) {
	s := &models.AssignmentSubmission{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, content, file_path, file_name, submitted_at, score, feedback, graded_at, graded_by
		FROM assignment_submissions WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID).Scan(&s.ID, &s.SessionID, &s.UserID, &s.Content, &s.FilePath,
		&s.FileName, &s.SubmittedAt, &s.Score, &s.Feedback, &s.GradedAt, &s.GradedBy)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *AssignmentRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.AssignmentSubmission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, user_id, content, file_path, file_name, submitted_at, score, feedback, graded_at, graded_by
		FROM assignment_submissions WHERE session_id = $1 ORDER BY submitted_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]*models.AssignmentSubmission, 0)
	for rows.Next() {
		s := &models.AssignmentSubmission{}
		if err := rows.Scan(&s.ID, &s.SessionID, &s.UserID, &s.Content, &s.FilePath,
			&s.FileName, &s.SubmittedAt, &s.Score, &s.Feedback, &s.GradedAt, &s.GradedBy); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

func (r *AssignmentRepo) Grade(ctx context.Context, id uuid.UUID, score int, feedback string, gradedBy uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE assignment_submissions SET score = $1, feedback = $2, graded_at = NOW(), graded_by = $3
		WHERE id = $4
	`, score, feedback, gradedBy, id)
	return err
}
