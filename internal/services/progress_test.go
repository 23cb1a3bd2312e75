package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type fakeProgressStore struct {
	rows  map[string]*models.Progress
	swept int64
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{rows: make(map[string]*models.Progress)}
}

func progressKey(userID, checkpointID uuid.UUID, mode string) string {
	return userID.String() + "/" + checkpointID.String() + "/" + mode
}

func (f *fakeProgressStore) Get(_ context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	p, ok := f.rows[progressKey(userID, checkpointID, mode)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeProgressStore) GetOrCreate(_ context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	key := progressKey(userID, checkpointID, mode)
	if p, ok := f.rows[key]; ok {
		return p, nil
	}
	p := &models.Progress{
		ID:           uuid.New(),
		UserID:       userID,
		CheckpointID: checkpointID,
		Mode:         mode,
	}
	f.rows[key] = p
	return p, nil
}

func (f *fakeProgressStore) Save(_ context.Context, p *models.Progress) error {
	f.rows[progressKey(p.UserID, p.CheckpointID, p.Mode)] = p
	return nil
}

func (f *fakeProgressStore) ListForUserSession(_ context.Context, userID, _ uuid.UUID, mode string) ([]*models.Progress, error) {
	out := []*models.Progress{}
	for _, p := range f.rows {
		if p.UserID == userID && p.Mode == mode {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProgressStore) SweepExpiredPaused(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var n int64
	for _, p := range f.rows {
		if p.UserID == userID && p.PauseExpired(now) {
			stopProgress(p, now)
			n++
		}
	}
	f.swept += n
	return n, nil
}

func (f *fakeProgressStore) SessionStats(_ context.Context, _ uuid.UUID, _ string) ([]repository.CheckpointStat, error) {
	return nil, nil
}

type fakeCheckpointStore struct {
	known map[uuid.UUID]*models.Checkpoint
}

func (f *fakeCheckpointStore) GetByID(_ context.Context, id uuid.UUID) (*models.Checkpoint, error) {
	cp, ok := f.known[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cp, nil
}

func (f *fakeCheckpointStore) ListBySession(_ context.Context, _ uuid.UUID) ([]*models.Checkpoint, error) {
	return nil, nil
}

func newProgressFixture(t *testing.T) (*ProgressService, *fakeProgressStore, uuid.UUID, uuid.UUID, *time.Time) {
	t.Helper()

	store := newFakeProgressStore()
	checkpointID := uuid.New()
	checkpoints := &fakeCheckpointStore{known: map[uuid.UUID]*models.Checkpoint{
		checkpointID: {ID: checkpointID, Title: "Intro"},
	}}

	svc := NewProgressService(store, checkpoints)
	clock := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	return svc, store, uuid.New(), checkpointID, &clock
}

func TestProgressStartPauseResumeStop(t *testing.T) {
	svc, _, userID, checkpointID, clock := newProgressFixture(t)
	ctx := context.Background()
	base := *clock

	p, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.IsRunning() {
		t.Fatalf("expected timer to be running after start")
	}

	*clock = base.Add(600 * time.Second)
	p, err = svc.Pause(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if p.AccumulatedSeconds != 600 {
		t.Fatalf("expected 600 banked seconds after pause, got %d", p.AccumulatedSeconds)
	}
	if !p.IsPaused || p.StartedAt != nil {
		t.Fatalf("expected paused state, got paused=%v started=%v", p.IsPaused, p.StartedAt)
	}

	*clock = base.Add(900 * time.Second)
	p, err = svc.Resume(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if p.IsPaused || p.StartedAt == nil {
		t.Fatalf("expected running state after resume")
	}

	*clock = base.Add(1500 * time.Second)
	p, err = svc.Stop(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.DurationSeconds == nil || *p.DurationSeconds != 1200 {
		t.Fatalf("expected final duration of 1200s, got %v", p.DurationSeconds)
	}
}

func TestProgressPauseWithoutRunning(t *testing.T) {
	svc, _, userID, checkpointID, _ := newProgressFixture(t)

	_, err := svc.Pause(context.Background(), userID, checkpointID, models.ProgressModeSelfPaced)
	if _, ok := err.(*StateConflictError); !ok {
		t.Fatalf("expected StateConflictError pausing an idle timer, got %v", err)
	}
}

func TestProgressResumeAfterExpiredPause(t *testing.T) {
	svc, store, userID, checkpointID, clock := newProgressFixture(t)
	ctx := context.Background()
	base := *clock

	if _, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeSelfPaced); err != nil {
		t.Fatalf("start: %v", err)
	}
	*clock = base.Add(5 * time.Minute)
	if _, err := svc.Pause(ctx, userID, checkpointID, models.ProgressModeSelfPaced); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Past the auto-stop horizon the sweep closes the row before resume
	// even looks at it.
	*clock = base.Add(5*time.Minute + models.AutoStopAfter)
	_, err := svc.Resume(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if _, ok := err.(*StateConflictError); !ok {
		t.Fatalf("expected StateConflictError resuming an expired pause, got %v", err)
	}

	p, err := store.Get(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.IsPaused || p.DurationSeconds == nil {
		t.Fatalf("expected the expired row to be stopped, got paused=%v duration=%v", p.IsPaused, p.DurationSeconds)
	}
	if *p.DurationSeconds != 300 {
		t.Fatalf("expected only the pre-pause 300s to count, got %d", *p.DurationSeconds)
	}
	if store.swept == 0 {
		t.Fatalf("expected the sweep to have closed the row")
	}

	// A much later read sweeps again and must not change the total.
	*clock = base.Add(2 * time.Hour)
	rows, err := svc.SessionProgress(ctx, userID, uuid.New(), models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("session progress: %v", err)
	}
	if len(rows) != 1 || rows[0].DurationSeconds == nil || *rows[0].DurationSeconds != 300 {
		t.Fatalf("expected the stopped total to be stable across sweeps, got %+v", rows)
	}
}

func TestProgressStartAfterCompleteRestartsFromZero(t *testing.T) {
	svc, _, userID, checkpointID, clock := newProgressFixture(t)
	ctx := context.Background()
	base := *clock

	if _, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeLive); err != nil {
		t.Fatalf("start: %v", err)
	}
	*clock = base.Add(120 * time.Second)
	p, err := svc.Complete(ctx, userID, checkpointID, models.ProgressModeLive)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if p.CompletedAt == nil || p.DurationSeconds == nil || *p.DurationSeconds != 120 {
		t.Fatalf("expected completion with 120s, got completed=%v duration=%v", p.CompletedAt, p.DurationSeconds)
	}

	*clock = base.Add(300 * time.Second)
	p, err = svc.Start(ctx, userID, checkpointID, models.ProgressModeLive)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if p.CompletedAt != nil || p.AccumulatedSeconds != 0 || p.DurationSeconds != nil {
		t.Fatalf("expected restart to reset the row, got %+v", p)
	}
	if !p.IsRunning() {
		t.Fatalf("expected timer running after restart")
	}
}

func TestProgressStartIsIdempotentWhileRunning(t *testing.T) {
	svc, _, userID, checkpointID, clock := newProgressFixture(t)
	ctx := context.Background()
	base := *clock

	first, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	startedAt := *first.StartedAt

	*clock = base.Add(time.Minute)
	second, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !second.StartedAt.Equal(startedAt) {
		t.Fatalf("expected the original start time to survive a repeat start")
	}
}

func TestProgressUncompleteKeepsTime(t *testing.T) {
	svc, _, userID, checkpointID, clock := newProgressFixture(t)
	ctx := context.Background()
	base := *clock

	if _, err := svc.Start(ctx, userID, checkpointID, models.ProgressModeSelfPaced); err != nil {
		t.Fatalf("start: %v", err)
	}
	*clock = base.Add(200 * time.Second)
	if _, err := svc.Complete(ctx, userID, checkpointID, models.ProgressModeSelfPaced); err != nil {
		t.Fatalf("complete: %v", err)
	}

	p, err := svc.Uncomplete(ctx, userID, checkpointID, models.ProgressModeSelfPaced)
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if p.CompletedAt != nil {
		t.Fatalf("expected completion mark cleared")
	}
	if p.DurationSeconds == nil || *p.DurationSeconds != 200 {
		t.Fatalf("expected earned time to stay, got %v", p.DurationSeconds)
	}
}

func TestProgressRejectsUnknownMode(t *testing.T) {
	svc, _, userID, checkpointID, _ := newProgressFixture(t)

	_, err := svc.Start(context.Background(), userID, checkpointID, "turbo")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError for unknown mode, got %v", err)
	}
}

func TestProgressUnknownCheckpoint(t *testing.T) {
	svc, _, userID, _, _ := newProgressFixture(t)

	_, err := svc.Start(context.Background(), userID, uuid.New(), models.ProgressModeLive)
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError for unknown checkpoint, got %v", err)
	}
}
