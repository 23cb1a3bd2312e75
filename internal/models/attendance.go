package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
	AttendanceAbsent  = "absent"
)

func ValidAttendanceStatus(s string) bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent:
		return true
	}
	return false
}

type Attendance struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	UserID      uuid.UUID  `json:"user_id"`
	LiveClassID *uuid.UUID `json:"live_class_id,omitempty"`
	Status      string     `json:"status"`
	CheckedAt   time.Time  `json:"checked_at"`
	CheckedBy   *uuid.UUID `json:"checked_by,omitempty"`
	Notes       string     `json:"notes"`
}

// AttendanceRecord joins the row with the student's name for rosters and
// the CSV export.
type AttendanceRecord struct {
	Attendance
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
