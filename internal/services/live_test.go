package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aula-backend/internal/models"
)

type fakeLiveStore struct {
	classes map[uuid.UUID]*models.LiveClass
}

func (f *fakeLiveStore) Create(_ context.Context, lc *models.LiveClass) error {
	lc.ID = uuid.New()
	lc.LiveStatus = models.LiveStatusPreparing
	f.classes[lc.SessionID] = lc
	return nil
}

func (f *fakeLiveStore) GetLatestForSession(_ context.Context, sessionID uuid.UUID) (*models.LiveClass, error) {
	lc, ok := f.classes[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return lc, nil
}

func (f *fakeLiveStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error) {
	for _, lc := range f.classes {
		if lc.ID != id {
			continue
		}
		if lc.LiveStatus != from {
			return false, nil
		}
		lc.LiveStatus = to
		switch to {
		case models.LiveStatusLive:
			t := at
			lc.StartedAt = &t
		case models.LiveStatusEnded:
			t := at
			lc.EndedAt = &t
		}
		return true, nil
	}
	return false, pgx.ErrNoRows
}

func (f *fakeLiveStore) SetCurrentCheckpoint(_ context.Context, id uuid.UUID, checkpointID *uuid.UUID) error {
	for _, lc := range f.classes {
		if lc.ID == id {
			lc.CurrentCheckpointID = checkpointID
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeSessionStore struct {
	sessions map[uuid.UUID]*models.Session
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeSessionStore) ListEnrolledUsers(_ context.Context, _ uuid.UUID) ([]*models.User, error) {
	return nil, errors.New("roster unavailable")
}

type fakeLiveProgressStore struct {
	stopped int64
}

func (f *fakeLiveProgressStore) BulkStopLiveForSession(_ context.Context, _ uuid.UUID, _ time.Time) (int64, error) {
	f.stopped++
	return f.stopped, nil
}

type fakeRoom struct {
	mu   sync.Mutex
	sent []models.WSMessage
}

func (f *fakeRoom) Broadcast(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeRoom) lastType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Type
}

func newLiveFixture(t *testing.T) (*LiveService, *fakeLiveStore, *fakeLiveProgressStore, *fakeRoom, uuid.UUID, uuid.UUID, *time.Time) {
	t.Helper()

	instructorID := uuid.New()
	sessionID := uuid.New()

	liveStore := &fakeLiveStore{classes: make(map[uuid.UUID]*models.LiveClass)}
	sessions := &fakeSessionStore{sessions: map[uuid.UUID]*models.Session{
		sessionID: {
			ID:           sessionID,
			InstructorID: instructorID,
			Title:        "Databases week 3",
			SessionType:  models.SessionTypeLive,
		},
	}}
	progress := &fakeLiveProgressStore{}
	room := &fakeRoom{}

	svc := NewLiveService(liveStore, sessions, progress, nil, nil, room)
	clock := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	return svc, liveStore, progress, room, sessionID, instructorID, &clock
}

func TestLiveGetCreatesPreparingClass(t *testing.T) {
	svc, _, _, _, sessionID, _, _ := newLiveFixture(t)

	lc, err := svc.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lc.LiveStatus != models.LiveStatusPreparing {
		t.Fatalf("expected a fresh preparing class, got %q", lc.LiveStatus)
	}

	again, err := svc.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.ID != lc.ID {
		t.Fatalf("expected the same class on repeat get")
	}
}

func TestLiveStartRequiresInstructor(t *testing.T) {
	svc, _, _, _, sessionID, _, _ := newLiveFixture(t)

	_, err := svc.Start(context.Background(), sessionID, uuid.New())
	if _, ok := err.(*ForbiddenError); !ok {
		t.Fatalf("expected ForbiddenError for a non-instructor, got %v", err)
	}
}

func TestLiveStartAndRepeatIsIdempotent(t *testing.T) {
	svc, _, _, room, sessionID, instructorID, _ := newLiveFixture(t)
	ctx := context.Background()

	lc, err := svc.Start(ctx, sessionID, instructorID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if lc.LiveStatus != models.LiveStatusLive || lc.StartedAt == nil {
		t.Fatalf("expected running class, got %+v", lc)
	}
	if room.lastType() != "class_started" {
		t.Fatalf("expected class_started broadcast, got %q", room.lastType())
	}

	again, err := svc.Start(ctx, sessionID, instructorID)
	if err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if !again.StartedAt.Equal(*lc.StartedAt) {
		t.Fatalf("expected repeat start to keep the original start time")
	}
}

func TestLiveStartBeforeScheduledTime(t *testing.T) {
	svc, liveStore, _, _, sessionID, instructorID, clock := newLiveFixture(t)
	ctx := context.Background()

	lc, err := svc.Get(ctx, sessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	scheduled := clock.Add(time.Hour)
	lc.ScheduledAt = &scheduled
	liveStore.classes[sessionID] = lc

	_, err = svc.Start(ctx, sessionID, instructorID)
	if _, ok := err.(*StateConflictError); !ok {
		t.Fatalf("expected StateConflictError before the scheduled time, got %v", err)
	}

	*clock = scheduled.Add(time.Minute)
	if _, err := svc.Start(ctx, sessionID, instructorID); err != nil {
		t.Fatalf("start after scheduled time: %v", err)
	}
}

func TestLiveEndStopsTimersAndIsTerminal(t *testing.T) {
	svc, _, progress, room, sessionID, instructorID, _ := newLiveFixture(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, sessionID, instructorID); err != nil {
		t.Fatalf("start: %v", err)
	}
	lc, err := svc.End(ctx, sessionID, instructorID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if lc.LiveStatus != models.LiveStatusEnded || lc.EndedAt == nil {
		t.Fatalf("expected ended class, got %+v", lc)
	}
	if progress.stopped == 0 {
		t.Fatalf("expected live timers to be bulk-stopped on end")
	}
	if room.lastType() != "class_ended" {
		t.Fatalf("expected class_ended broadcast, got %q", room.lastType())
	}

	// Ended is terminal.
	if _, err := svc.Start(ctx, sessionID, instructorID); err == nil {
		t.Fatalf("expected restart of an ended class to be rejected")
	} else if _, ok := err.(*StateConflictError); !ok {
		t.Fatalf("expected StateConflictError, got %v", err)
	}

	// Ending again is a no-op.
	stopsBefore := progress.stopped
	if _, err := svc.End(ctx, sessionID, instructorID); err != nil {
		t.Fatalf("repeat end: %v", err)
	}
	if progress.stopped != stopsBefore {
		t.Fatalf("expected repeat end not to stop timers again")
	}
}

func TestLiveEndBeforeStart(t *testing.T) {
	svc, _, _, _, sessionID, instructorID, _ := newLiveFixture(t)

	_, err := svc.End(context.Background(), sessionID, instructorID)
	if _, ok := err.(*StateConflictError); !ok {
		t.Fatalf("expected StateConflictError ending a preparing class, got %v", err)
	}
}

func TestLiveSetCurrentCheckpoint(t *testing.T) {
	svc, liveStore, _, room, sessionID, instructorID, _ := newLiveFixture(t)
	ctx := context.Background()

	checkpointID := uuid.New()
	if err := svc.SetCurrentCheckpoint(ctx, sessionID, instructorID, &checkpointID); err == nil {
		t.Fatalf("expected setting a checkpoint on a preparing class to be rejected")
	}

	if _, err := svc.Start(ctx, sessionID, instructorID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SetCurrentCheckpoint(ctx, sessionID, instructorID, &checkpointID); err != nil {
		t.Fatalf("set current checkpoint: %v", err)
	}
	lc := liveStore.classes[sessionID]
	if lc.CurrentCheckpointID == nil || *lc.CurrentCheckpointID != checkpointID {
		t.Fatalf("expected checkpoint recorded on the class")
	}
	if room.lastType() != "current_checkpoint_changed" {
		t.Fatalf("expected current_checkpoint_changed broadcast, got %q", room.lastType())
	}
}

func TestCanTransitionLive(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.LiveStatusPreparing, models.LiveStatusLive, true},
		{models.LiveStatusLive, models.LiveStatusEnded, true},
		{models.LiveStatusPreparing, models.LiveStatusEnded, false},
		{models.LiveStatusEnded, models.LiveStatusLive, false},
		{models.LiveStatusLive, models.LiveStatusPreparing, false},
		{models.LiveStatusLive, models.LiveStatusLive, false},
	}

	for _, tc := range tests {
		if got := models.CanTransitionLive(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionLive(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
