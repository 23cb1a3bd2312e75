package models

import (
	"time"

	"github.com/google/uuid"
)

// Live class lifecycle. Transitions only move forward: preparing -> live
// -> ended. Ended is terminal.
const (
	LiveStatusPreparing = "preparing"
	LiveStatusLive      = "live"
	LiveStatusEnded     = "ended"
)

// CanTransitionLive reports whether from -> to is a legal forward step.
// Same-state requests are not steps; callers treat them as idempotent
// no-ops before asking.
func CanTransitionLive(from, to string) bool {
	switch from {
	case LiveStatusPreparing:
		return to == LiveStatusLive
	case LiveStatusLive:
		return to == LiveStatusEnded
	}
	return false
}

type LiveClass struct {
	ID                  uuid.UUID  `json:"id"`
	SessionID           uuid.UUID  `json:"session_id"`
	LiveStatus          string     `json:"live_status"`
	ScheduledAt         *time.Time `json:"scheduled_at,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	CurrentCheckpointID *uuid.UUID `json:"current_checkpoint_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}
