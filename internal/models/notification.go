package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotifyLiveStarted     = "live_started"
	NotifySessionReminder = "session_reminder"
	NotifyAnswerPosted    = "answer_posted"
	NotifyGraded          = "graded"
	NotifyDeckReady       = "deck_ready"
	NotifyDeckFailed      = "deck_failed"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
