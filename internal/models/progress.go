package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProgressModeLive      = "live"
	ProgressModeSelfPaced = "self_paced"
)

func ValidProgressMode(m string) bool {
	return m == ProgressModeLive || m == ProgressModeSelfPaced
}

// AutoStopAfter is how long a timer may sit paused before the sweep
// force-stops it.
const AutoStopAfter = 30 * time.Minute

// Progress is one user's timer against one checkpoint in one mode.
// Invariant: StartedAt is non-nil only while the timer is running, and
// AccumulatedSeconds holds everything banked before the current run.
type Progress struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	CheckpointID       uuid.UUID  `json:"checkpoint_id"`
	Mode               string     `json:"mode"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	IsPaused           bool       `json:"is_paused"`
	AccumulatedSeconds int        `json:"accumulated_seconds"`
	DurationSeconds    *int       `json:"duration_seconds,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (p *Progress) IsRunning() bool   { return p.StartedAt != nil && !p.IsPaused }
func (p *Progress) IsCompleted() bool { return p.CompletedAt != nil }

// ElapsedSeconds is the total time earned as of now: banked seconds plus
// the open run, if one is running. Paused timers contribute only the bank.
func (p *Progress) ElapsedSeconds(now time.Time) int {
	total := p.AccumulatedSeconds
	if p.IsRunning() {
		if d := now.Sub(*p.StartedAt); d > 0 {
			total += int(d.Seconds())
		}
	}
	return total
}

// PauseExpired reports whether the timer has been paused for AutoStopAfter
// or longer. The sweep force-stops such rows before any other operation
// touches them.
func (p *Progress) PauseExpired(now time.Time) bool {
	return p.IsPaused && p.PausedAt != nil && now.Sub(*p.PausedAt) >= AutoStopAfter
}
