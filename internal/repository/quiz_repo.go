package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) CreateQuestion(ctx context.Context, q *models.QuizQuestion) error {
	q.ID = uuid.New()
	optionsBytes, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO quiz_questions (id, session_id, question_text, question_type, options_json, correct_answer, points, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, q.ID, q.SessionID, q.QuestionText, q.QuestionType, optionsBytes, q.CorrectAnswer, q.Points, q.Seq,
	).Scan(&q.CreatedAt)
}

func (r *QuizRepo) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*models.QuizQuestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, question_text, question_type, options_json, correct_answer, points, seq, created_at
		FROM quiz_questions WHERE session_id = $1 ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]*models.QuizQuestion, 0)
	for rows.Next() {
		q := &models.QuizQuestion{}
		var optionsBytes []byte
		if err := rows.Scan(&q.ID, &q.SessionID, &q.QuestionText, &q.QuestionType,
			&optionsBytes, &q.CorrectAnswer, &q.Points, &q.Seq, &q.CreatedAt); err != nil {
			return nil, err
		}
		if len(optionsBytes) > 0 {
			if err := json.Unmarshal(optionsBytes, &q.Options); err != nil {
				return nil, err
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuizRepo) UpdateQuestion(ctx context.Context, q *models.QuizQuestion) error {
	optionsBytes, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE quiz_questions SET question_text = $1, question_type = $2, options_json = $3,
			correct_answer = $4, points = $5, seq = $6
		WHERE id = $7
	`, q.QuestionText, q.QuestionType, optionsBytes, q.CorrectAnswer, q.Points, q.Seq, q.ID)
	return err
}

func (r *QuizRepo) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM quiz_questions WHERE id = $1", id)
	return err
}

func (r *QuizRepo) CreateAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO quiz_attempts (id, session_id, user_id, max_score)
		VALUES ($1, $2, $3, $4)
		RETURNING started_at
	`, a.ID, a.SessionID, a.UserID, a.MaxScore).Scan(&a.StartedAt)
}

func (r *QuizRepo) GetAttempt(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	var answersBytes []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, user_id, score, max_score, started_at, completed_at, answers_json
		FROM quiz_attempts WHERE id = $1
	`, id).Scan(&a.ID, &a.SessionID, &a.UserID, &a.Score, &a.MaxScore,
		&a.StartedAt, &a.CompletedAt, &answersBytes)
	if err != nil {
		return nil, err
	}
	if len(answersBytes) > 0 {
		if err := json.Unmarshal(answersBytes, &a.Answers); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (r *QuizRepo) CompleteAttempt(ctx context.Context, a *models.QuizAttempt) error {
	answersBytes, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		UPDATE quiz_attempts SET score = $1, completed_at = NOW(), answers_json = $2
		WHERE id = $3
		RETURNING completed_at
	`, a.Score, answersBytes, a.ID).Scan(&a.CompletedAt)
}

func (r *QuizRepo) ListAttempts(ctx context.Context, sessionID uuid.UUID) ([]*models.QuizAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, user_id, score, max_score, started_at, completed_at
		FROM quiz_attempts WHERE session_id = $1 ORDER BY started_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*models.QuizAttempt, 0)
	for rows.Next() {
		a := &models.QuizAttempt{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.Score, &a.MaxScore,
			&a.StartedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
