package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, user_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.SessionID, m.UserID, m.Body).Scan(&m.CreatedAt)
}

// ListBySession returns up to limit messages newest-first, skipping
// soft-deleted rows.
func (r *ChatRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessageView, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.session_id, m.user_id, m.body, m.created_at, m.edited_at,
		       COALESCE(u.nickname, u.full_name)
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_id = $1 AND m.deleted_at IS NULL
		ORDER BY m.created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.ChatMessageView, 0)
	for rows.Next() {
		v := &models.ChatMessageView{}
		if err := rows.Scan(&v.ID, &v.SessionID, &v.UserID, &v.Body, &v.CreatedAt,
			&v.EditedAt, &v.SenderName); err != nil {
			return nil, err
		}
		messages = append(messages, v)
	}
	return messages, rows.Err()
}

// Edit updates the body only when the author matches; returns false when
// the message is missing, deleted, or not theirs.
func (r *ChatRepo) Edit(ctx context.Context, id, userID uuid.UUID, body string, isModerator bool) (bool, error) {
	query := `
		UPDATE chat_messages SET body = $1, edited_at = NOW()
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`
	args := []any{body, id, userID}
	if isModerator {
		query = `
		UPDATE chat_messages SET body = $1, edited_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL`
		args = []any{body, id}
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChatRepo) SoftDelete(ctx context.Context, id, userID uuid.UUID, isModerator bool) (bool, error) {
	query := "UPDATE chat_messages SET deleted_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL"
	args := []any{id, userID}
	if isModerator {
		query = "UPDATE chat_messages SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL"
		args = []any{id}
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
