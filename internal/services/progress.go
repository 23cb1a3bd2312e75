package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type progressStore interface {
	Get(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error)
	GetOrCreate(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error)
	Save(ctx context.Context, p *models.Progress) error
	ListForUserSession(ctx context.Context, userID, sessionID uuid.UUID, mode string) ([]*models.Progress, error)
	SweepExpiredPaused(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	SessionStats(ctx context.Context, sessionID uuid.UUID, mode string) ([]repository.CheckpointStat, error)
}

type checkpointStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Checkpoint, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Checkpoint, error)
}

// ProgressService owns the per-checkpoint study timers. Every public
// method sweeps the user's expired paused rows first, so a timer left
// paused over 30 minutes is closed before anything else happens.
type ProgressService struct {
	progressRepo   progressStore
	checkpointRepo checkpointStore
	now            func() time.Time
}

func NewProgressService(progressRepo progressStore, checkpointRepo checkpointStore) *ProgressService {
	return &ProgressService{
		progressRepo:   progressRepo,
		checkpointRepo: checkpointRepo,
		now:            time.Now,
	}
}

func (s *ProgressService) sweep(ctx context.Context, userID uuid.UUID) {
	n, err := s.progressRepo.SweepExpiredPaused(ctx, userID, s.now())
	if err != nil {
		log.Printf("progress sweep failed for user %s: %v", userID, err)
		return
	}
	if n > 0 {
		log.Printf("progress sweep closed %d expired paused timers for user %s", n, userID)
	}
}

func (s *ProgressService) load(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	if !models.ValidProgressMode(mode) {
		return nil, &ValidationError{Fields: map[string]string{"mode": "Mode must be live or self_paced"}}
	}
	if _, err := s.checkpointRepo.GetByID(ctx, checkpointID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Checkpoint not found"}
		}
		return nil, err
	}
	return s.progressRepo.GetOrCreate(ctx, userID, checkpointID, mode)
}

// Start begins the timer. Starting a running or paused timer is a no-op;
// starting a completed one restarts it from zero.
func (s *ProgressService) Start(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if startProgress(p, now) {
		if err := s.progressRepo.Save(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *ProgressService) Pause(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	if err := pauseProgress(p, s.now()); err != nil {
		return nil, err
	}
	if err := s.progressRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgressService) Resume(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	if err := resumeProgress(p, s.now()); err != nil {
		return nil, err
	}
	if err := s.progressRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgressService) Stop(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	stopProgress(p, s.now())
	if err := s.progressRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgressService) Reset(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	resetProgress(p)
	if err := s.progressRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProgressService) Complete(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	completeProgress(p, s.now())
	if err := s.progressRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Uncomplete clears the completion mark; the earned time stays.
func (s *ProgressService) Uncomplete(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	s.sweep(ctx, userID)

	p, err := s.load(ctx, userID, checkpointID, mode)
	if err != nil {
		return nil, err
	}

	if p.CompletedAt != nil {
		p.CompletedAt = nil
		if err := s.progressRepo.Save(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SessionProgress lists the user's rows for every checkpoint of a session.
func (s *ProgressService) SessionProgress(ctx context.Context, userID, sessionID uuid.UUID, mode string) ([]*models.Progress, error) {
	if !models.ValidProgressMode(mode) {
		return nil, &ValidationError{Fields: map[string]string{"mode": "Mode must be live or self_paced"}}
	}
	s.sweep(ctx, userID)
	return s.progressRepo.ListForUserSession(ctx, userID, sessionID, mode)
}

func (s *ProgressService) SessionStats(ctx context.Context, sessionID uuid.UUID, mode string) ([]repository.CheckpointStat, error) {
	if !models.ValidProgressMode(mode) {
		return nil, &ValidationError{Fields: map[string]string{"mode": "Mode must be live or self_paced"}}
	}
	return s.progressRepo.SessionStats(ctx, sessionID, mode)
}

// Timer transitions. Pure functions over the row so the arithmetic is
// checkable without a database.

// startProgress reports whether the row changed.
func startProgress(p *models.Progress, now time.Time) bool {
	if p.CompletedAt != nil {
		resetProgress(p)
	}
	if p.StartedAt != nil || p.IsPaused {
		return false
	}
	t := now
	p.StartedAt = &t
	return true
}

func pauseProgress(p *models.Progress, now time.Time) error {
	if p.CompletedAt != nil {
		return &StateConflictError{Message: "Timer is already completed"}
	}
	if p.StartedAt == nil || p.IsPaused {
		return &StateConflictError{Message: "Timer is not running"}
	}
	if d := now.Sub(*p.StartedAt); d > 0 {
		p.AccumulatedSeconds += int(d.Seconds())
	}
	p.StartedAt = nil
	p.IsPaused = true
	t := now
	p.PausedAt = &t
	return nil
}

func resumeProgress(p *models.Progress, now time.Time) error {
	if !p.IsPaused || p.PausedAt == nil {
		return &StateConflictError{Message: "Timer is not paused"}
	}
	if now.Sub(*p.PausedAt) >= models.AutoStopAfter {
		// The sweep should have closed this row already; close it now
		// rather than resume a stale run.
		stopProgress(p, now)
		return &StateConflictError{Message: "Timer expired while paused and has been stopped"}
	}
	p.IsPaused = false
	p.PausedAt = nil
	t := now
	p.StartedAt = &t
	return nil
}

// stopProgress folds any open run into the bank and persists it as the
// final duration. Stopping an idle timer is a no-op.
func stopProgress(p *models.Progress, now time.Time) {
	if p.StartedAt != nil && !p.IsPaused {
		if d := now.Sub(*p.StartedAt); d > 0 {
			p.AccumulatedSeconds += int(d.Seconds())
		}
	}
	p.StartedAt = nil
	p.PausedAt = nil
	p.IsPaused = false
	total := p.AccumulatedSeconds
	p.DurationSeconds = &total
}

func resetProgress(p *models.Progress) {
	p.StartedAt = nil
	p.PausedAt = nil
	p.IsPaused = false
	p.AccumulatedSeconds = 0
	p.DurationSeconds = nil
	p.CompletedAt = nil
}

func completeProgress(p *models.Progress, now time.Time) {
	stopProgress(p, now)
	t := now
	p.CompletedAt = &t
}
