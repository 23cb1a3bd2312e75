package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type CommunityRepo struct {
	pool *pgxpool.Pool
}

func NewCommunityRepo(pool *pgxpool.Pool) *CommunityRepo {
	return &CommunityRepo{pool: pool}
}

func (r *CommunityRepo) CreatePost(ctx context.Context, p *models.QnAPost) error {
	p.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO qna_posts (id, user_id, session_id, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.SessionID, p.Title, p.Body).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetPost fetches a post and bumps its view counter.
func (r *CommunityRepo) GetPost(ctx context.Context, id uuid.UUID) (*models.QnAPost, error) {
	p := &models.QnAPost{}
	err := r.pool.QueryRow(ctx, `
		UPDATE qna_posts SET views_count = views_count + 1
		WHERE id = $1
		RETURNING id, user_id, session_id, title, body, is_resolved, views_count, created_at, updated_at
	`, id).Scan(&p.ID, &p.UserID, &p.SessionID, &p.Title, &p.Body,
		&p.IsResolved, &p.ViewsCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *CommunityRepo) ListPosts(ctx context.Context, sessionID *uuid.UUID, limit, offset int) ([]*models.QnAPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.session_id, p.title, p.body, p.is_resolved, p.views_count,
		       p.created_at, p.updated_at, u.full_name,
		       (SELECT COUNT(*) FROM qna_answers a WHERE a.post_id = p.id)
		FROM qna_posts p
		JOIN users u ON u.id = p.user_id
		WHERE ($1::uuid IS NULL OR p.session_id = $1)
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]*models.QnAPost, 0)
	for rows.Next() {
		p := &models.QnAPost{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.SessionID, &p.Title, &p.Body,
			&p.IsResolved, &p.ViewsCount, &p.CreatedAt, &p.UpdatedAt,
			&p.AuthorName, &p.AnswerCount); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *CommunityRepo) MarkResolved(ctx context.Context, postID, ownerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE qna_posts SET is_resolved = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2",
		postID, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CommunityRepo) CreateAnswer(ctx context.Context, a *models.QnAAnswer) error {
	a.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO qna_answers (id, post_id, user_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.PostID, a.UserID, a.Body).Scan(&a.CreatedAt)
}

func (r *CommunityRepo) ListAnswers(ctx context.Context, postID uuid.UUID) ([]*models.QnAAnswer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.post_id, a.user_id, a.body, a.is_accepted, a.created_at, u.full_name
		FROM qna_answers a
		JOIN users u ON u.id = a.user_id
		WHERE a.post_id = $1
		ORDER BY a.is_accepted DESC, a.created_at
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make([]*models.QnAAnswer, 0)
	for rows.Next() {
		a := &models.QnAAnswer{}
		if err := rows.Scan(&a.ID, &a.PostID, &a.UserID, &a.Body, &a.IsAccepted,
			&a.CreatedAt, &a.AuthorName); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// AcceptAnswer marks one answer accepted; only the post owner may do it,
// and earlier acceptances on the same post are cleared.
func (r *CommunityRepo) AcceptAnswer(ctx context.Context, answerID, postOwnerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		WITH target AS (
			SELECT a.id, a.post_id FROM qna_answers a
			JOIN qna_posts p ON p.id = a.post_id
			WHERE a.id = $1 AND p.user_id = $2
		), cleared AS (
			UPDATE qna_answers SET is_accepted = FALSE
			WHERE post_id IN (SELECT post_id FROM target)
		)
		UPDATE qna_answers SET is_accepted = TRUE
		WHERE id IN (SELECT id FROM target)
	`, answerID, postOwnerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
