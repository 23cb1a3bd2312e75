package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionShortAnswer    = "short_answer"
	QuestionTrueFalse      = "true_false"
)

func ValidQuestionType(t string) bool {
	switch t {
	case QuestionMultipleChoice, QuestionShortAnswer, QuestionTrueFalse:
		return true
	}
	return false
}

type QuizQuestion struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	QuestionText  string    `json:"question_text"`
	QuestionType  string    `json:"question_type"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"-"`
	Points        int       `json:"points"`
	Seq           int       `json:"seq"`
	CreatedAt     time.Time `json:"created_at"`
}

type QuizAttempt struct {
	ID          uuid.UUID         `json:"id"`
	SessionID   uuid.UUID         `json:"session_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Score       *int              `json:"score,omitempty"`
	MaxScore    int               `json:"max_score"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Answers     map[string]string `json:"answers,omitempty"`
}
