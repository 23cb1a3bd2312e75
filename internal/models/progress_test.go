package models

import (
	"testing"
	"time"
)

func TestProgressElapsedSeconds(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Second)

	running := &Progress{AccumulatedSeconds: 60, StartedAt: &started}
	if got := running.ElapsedSeconds(now); got != 150 {
		t.Fatalf("expected 150s for a running timer, got %d", got)
	}

	paused := &Progress{AccumulatedSeconds: 60, IsPaused: true, PausedAt: &started}
	if got := paused.ElapsedSeconds(now); got != 60 {
		t.Fatalf("expected only banked time while paused, got %d", got)
	}

	idle := &Progress{AccumulatedSeconds: 60}
	if got := idle.ElapsedSeconds(now); got != 60 {
		t.Fatalf("expected banked time for an idle timer, got %d", got)
	}
}

func TestProgressPauseExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	recent := now.Add(-AutoStopAfter + time.Second)
	old := now.Add(-AutoStopAfter)

	p := &Progress{IsPaused: true, PausedAt: &recent}
	if p.PauseExpired(now) {
		t.Fatalf("expected pause under the horizon not to be expired")
	}

	p.PausedAt = &old
	if !p.PauseExpired(now) {
		t.Fatalf("expected pause at the horizon to be expired")
	}

	if (&Progress{PausedAt: &old}).PauseExpired(now) {
		t.Fatalf("expected a non-paused row never to expire")
	}
}

func TestProgressStateHelpers(t *testing.T) {
	now := time.Now()

	p := &Progress{StartedAt: &now}
	if !p.IsRunning() || p.IsCompleted() {
		t.Fatalf("expected running and not completed, got running=%v completed=%v", p.IsRunning(), p.IsCompleted())
	}

	p = &Progress{StartedAt: &now, IsPaused: true, CompletedAt: &now}
	if p.IsRunning() || !p.IsCompleted() {
		t.Fatalf("expected paused-completed state, got running=%v completed=%v", p.IsRunning(), p.IsCompleted())
	}
}

func TestUserRoleHelpers(t *testing.T) {
	student := &User{Role: RoleStudent}
	if !student.IsStudent() || student.IsInstructor() {
		t.Fatalf("unexpected helpers for student role")
	}

	instructor := &User{Role: RoleInstructor}
	if instructor.IsStudent() || !instructor.IsInstructor() {
		t.Fatalf("unexpected helpers for instructor role")
	}

	// Admins count as instructors for capability checks.
	admin := &User{Role: RoleAdmin}
	if !admin.IsInstructor() {
		t.Fatalf("expected admin to pass instructor checks")
	}
}
