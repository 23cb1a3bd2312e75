package models

import (
	"time"

	"github.com/google/uuid"
)

type QnAPost struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	IsResolved bool       `json:"is_resolved"`
	ViewsCount int        `json:"views_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	AuthorName  string `json:"author_name,omitempty"`
	AnswerCount int    `json:"answer_count"`
}

type QnAAnswer struct {
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"post_id"`
	UserID     uuid.UUID `json:"user_id"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`

	AuthorName string `json:"author_name,omitempty"`
}
