package models

import (
	"testing"
	"time"
)

func TestAttendanceStatusAt(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)
	lateEnd := start.Add(45 * time.Minute)

	session := &Session{
		AttendanceStart: &start,
		AttendanceEnd:   &end,
		LateAllowed:     true,
		LateEnd:         &lateEnd,
	}

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"before window", start.Add(-time.Minute), ""},
		{"window opens", start, AttendancePresent},
		{"mid window", start.Add(10 * time.Minute), AttendancePresent},
		{"window closes", end, AttendancePresent},
		{"late period", end.Add(time.Minute), AttendanceLate},
		{"late closes", lateEnd, AttendanceLate},
		{"after late", lateEnd.Add(time.Second), ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := session.AttendanceStatusAt(tc.at); got != tc.want {
				t.Errorf("AttendanceStatusAt(%v) = %q, want %q", tc.at, got, tc.want)
			}
		})
	}
}

func TestAttendanceStatusAtWithoutLateWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)

	session := &Session{AttendanceStart: &start, AttendanceEnd: &end}

	if got := session.AttendanceStatusAt(end.Add(time.Minute)); got != "" {
		t.Fatalf("expected no status after the window when late is disallowed, got %q", got)
	}
}

func TestAttendanceStatusAtWithoutWindow(t *testing.T) {
	session := &Session{}

	if got := session.AttendanceStatusAt(time.Now()); got != "" {
		t.Fatalf("expected no status when no window is configured, got %q", got)
	}
}
