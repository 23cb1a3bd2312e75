package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionTypeLive       = "live"
	SessionTypeVideo      = "video"
	SessionTypeMaterial   = "material"
	SessionTypeAssignment = "assignment"
	SessionTypeQuiz       = "quiz"
)

func ValidSessionType(t string) bool {
	switch t {
	case SessionTypeLive, SessionTypeVideo, SessionTypeMaterial, SessionTypeAssignment, SessionTypeQuiz:
		return true
	}
	return false
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Session struct {
	ID                    uuid.UUID  `json:"id"`
	SubjectID             *uuid.UUID `json:"subject_id,omitempty"`
	InstructorID          uuid.UUID  `json:"instructor_id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	SessionType           string     `json:"session_type"`
	InviteCode            string     `json:"invite_code"`
	WeekNumber            *int       `json:"week_number,omitempty"`
	Visibility            string     `json:"visibility"`
	VideoURL              *string    `json:"video_url,omitempty"`
	MaterialPath          *string    `json:"-"`
	MaterialName          *string    `json:"material_name,omitempty"`
	AssignmentDescription *string    `json:"assignment_description,omitempty"`
	AssignmentDueAt       *time.Time `json:"assignment_due_at,omitempty"`
	QuizTimeLimit         *int       `json:"quiz_time_limit,omitempty"`
	QuizPassScore         *int       `json:"quiz_pass_score,omitempty"`
	AttendanceStart       *time.Time `json:"attendance_start,omitempty"`
	AttendanceEnd         *time.Time `json:"attendance_end,omitempty"`
	LateAllowed           bool       `json:"late_allowed"`
	LateEnd               *time.Time `json:"late_end,omitempty"`
	DeletedAt             *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// AttendanceStatusAt decides what a check-in at t earns given the session's
// attendance window. Outside every window the check-in is rejected, which
// the empty string signals.
func (s *Session) AttendanceStatusAt(t time.Time) string {
	if s.AttendanceStart == nil || s.AttendanceEnd == nil {
		return ""
	}
	if t.Before(*s.AttendanceStart) {
		return ""
	}
	if !t.After(*s.AttendanceEnd) {
		return AttendancePresent
	}
	if s.LateAllowed && s.LateEnd != nil && !t.After(*s.LateEnd) {
		return AttendanceLate
	}
	return ""
}

type Enrollment struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	UserID     uuid.UUID `json:"user_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
