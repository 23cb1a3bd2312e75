package models

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentSubmission struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Content     string     `json:"content"`
	FilePath    *string    `json:"-"`
	FileName    *string    `json:"file_name,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Score       *int       `json:"score,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
	GradedBy    *uuid.UUID `json:"graded_by,omitempty"`
}
