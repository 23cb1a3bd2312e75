package models

import (
	"time"

	"github.com/google/uuid"
)

type Checkpoint struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"session_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	Seq              int        `json:"seq"`
	DeletedAt        *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CheckpointSuggestion is one AI-proposed checkpoint, held on the deck as
// JSON until an instructor saves or discards the batch.
type CheckpointSuggestion struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}
