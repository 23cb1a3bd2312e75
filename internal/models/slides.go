package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversionPending    = "pending"
	ConversionConverting = "converting"
	ConversionReady      = "ready"
	ConversionFailed     = "failed"
	MaxSlideCount        = 100
	MaxDeckUploadBytes   = 50 << 20
)

type SlideDeck struct {
	ID                       uuid.UUID  `json:"id"`
	SessionID                uuid.UUID  `json:"session_id"`
	FileName                 string     `json:"file_name"`
	ConversionStatus         string     `json:"conversion_status"`
	ConversionError          *string    `json:"conversion_error,omitempty"`
	SlideCount               int        `json:"slide_count"`
	CurrentSlideIndex        int        `json:"current_slide_index"`
	FlagThresholdCount       int        `json:"flag_threshold_count"`
	FlagThresholdRate        float64    `json:"flag_threshold_rate"`
	EstimatedDurationMinutes *int       `json:"estimated_duration_minutes,omitempty"`
	SuggestionsJSON          []byte     `json:"-"`
	CreatedAt                time.Time  `json:"created_at"`
}

const (
	ReactionUnderstood = "understood"
	ReactionQuestion   = "question"
	ReactionHard       = "hard"
	ReactionNone       = "none"
)

func ValidReaction(r string) bool {
	switch r {
	case ReactionUnderstood, ReactionQuestion, ReactionHard, ReactionNone:
		return true
	}
	return false
}

type SlideReaction struct {
	ID         uuid.UUID `json:"id"`
	DeckID     uuid.UUID `json:"deck_id"`
	UserID     uuid.UUID `json:"user_id"`
	SlideIndex int       `json:"slide_index"`
	Reaction   string    `json:"reaction"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReactionTally is the per-slide aggregate broadcast to the room after
// every reaction change.
type ReactionTally struct {
	SlideIndex int `json:"slide_index"`
	Understood int `json:"understood"`
	Question   int `json:"question"`
	Hard       int `json:"hard"`
}

// ProblemCount counts reactions that signal trouble on a slide. Questions
// and hards both do.
func (t ReactionTally) ProblemCount() int { return t.Question + t.Hard }

func (t ReactionTally) Total() int { return t.Understood + t.Question + t.Hard }

// ShouldFlag applies the deck's auto-bookmark thresholds to a tally.
func (t ReactionTally) ShouldFlag(minCount int, minRate float64) bool {
	problems := t.ProblemCount()
	if problems >= minCount {
		return true
	}
	if total := t.Total(); total > 0 && float64(problems)/float64(total) >= minRate {
		return true
	}
	return false
}

type SlideBookmark struct {
	ID            uuid.UUID `json:"id"`
	DeckID        uuid.UUID `json:"deck_id"`
	SlideIndex    int       `json:"slide_index"`
	IsAuto        bool      `json:"is_auto"`
	IsManual      bool      `json:"is_manual"`
	Reason        *string   `json:"reason,omitempty"`
	Memo          string    `json:"memo"`
	SupplementURL string    `json:"supplement_url"`
	UpdatedAt     time.Time `json:"updated_at"`
}
