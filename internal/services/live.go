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

type liveStore interface {
	Create(ctx context.Context, lc *models.LiveClass) error
	GetLatestForSession(ctx context.Context, sessionID uuid.UUID) (*models.LiveClass, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (bool, error)
	SetCurrentCheckpoint(ctx context.Context, id uuid.UUID, checkpointID *uuid.UUID) error
}

type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListEnrolledUsers(ctx context.Context, sessionID uuid.UUID) ([]*models.User, error)
}

type liveProgressStore interface {
	BulkStopLiveForSession(ctx context.Context, sessionID uuid.UUID, now time.Time) (int64, error)
}

// roomBroadcaster is the slice of the realtime hub the live service needs.
type roomBroadcaster interface {
	Broadcast(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

type liveMailer interface {
	SendLiveStartingEmail(to, sessionTitle string) error
}

// LiveService drives the preparing -> live -> ended lifecycle. Only the
// session's owning instructor may transition it, and ended is terminal.
type LiveService struct {
	liveRepo     liveStore
	sessionRepo  sessionStore
	progressRepo liveProgressStore
	notifyRepo   *repository.NotificationRepo
	mailer       liveMailer
	rooms        roomBroadcaster
	now          func() time.Time
}

func NewLiveService(
	liveRepo liveStore,
	sessionRepo sessionStore,
	progressRepo liveProgressStore,
	notifyRepo *repository.NotificationRepo,
	mailer liveMailer,
	rooms roomBroadcaster,
) *LiveService {
	return &LiveService{
		liveRepo:     liveRepo,
		sessionRepo:  sessionRepo,
		progressRepo: progressRepo,
		notifyRepo:   notifyRepo,
		mailer:       mailer,
		rooms:        rooms,
		now:          time.Now,
	}
}

func (s *LiveService) authorize(ctx context.Context, sessionID, userID uuid.UUID) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, err
	}
	if session.InstructorID != userID {
		return nil, &ForbiddenError{Message: "Only the session's instructor may control the live class"}
	}
	return session, nil
}

// Get returns the latest live class run for a session, creating a
// preparing one for live sessions that have none yet.
func (s *LiveService) Get(ctx context.Context, sessionID uuid.UUID) (*models.LiveClass, error) {
	lc, err := s.liveRepo.GetLatestForSession(ctx, sessionID)
	if err == nil {
		return lc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, err
	}
	if session.SessionType != models.SessionTypeLive {
		return nil, &NotFoundError{Message: "Session has no live class"}
	}

	lc = &models.LiveClass{SessionID: sessionID}
	if err := s.liveRepo.Create(ctx, lc); err != nil {
		return nil, err
	}
	return lc, nil
}

// Start moves the class to live. Repeating the request while already live
// is an idempotent no-op; starting an ended class is rejected.
func (s *LiveService) Start(ctx context.Context, sessionID, userID uuid.UUID) (*models.LiveClass, error) {
	session, err := s.authorize(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	lc, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if lc.LiveStatus == models.LiveStatusLive {
		return lc, nil
	}
	if !models.CanTransitionLive(lc.LiveStatus, models.LiveStatusLive) {
		return nil, &StateConflictError{Message: "Live class has already ended"}
	}

	now := s.now()
	if lc.ScheduledAt != nil && now.Before(*lc.ScheduledAt) {
		return nil, &StateConflictError{Message: "Live class cannot start before its scheduled time"}
	}

	ok, err := s.liveRepo.TransitionStatus(ctx, lc.ID, lc.LiveStatus, models.LiveStatusLive, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race; re-read and report the winner's state.
		return s.Get(ctx, sessionID)
	}

	lc.LiveStatus = models.LiveStatusLive
	lc.StartedAt = &now

	s.rooms.Broadcast(ctx, sessionID, models.WSMessage{
		Type: "class_started",
		Payload: map[string]any{
			"session_id": sessionID,
			"started_at": now,
		},
	})
	go s.notifyEnrolled(session, "Live class started", session.Title+" is now live")

	return lc, nil
}

// End moves the class to ended: every still-running live-mode timer under
// the session is force-stopped, and the room is told the class is over.
func (s *LiveService) End(ctx context.Context, sessionID, userID uuid.UUID) (*models.LiveClass, error) {
	if _, err := s.authorize(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	lc, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if lc.LiveStatus == models.LiveStatusEnded {
		return lc, nil
	}
	if !models.CanTransitionLive(lc.LiveStatus, models.LiveStatusEnded) {
		return nil, &StateConflictError{Message: "Live class has not started"}
	}

	now := s.now()
	ok, err := s.liveRepo.TransitionStatus(ctx, lc.ID, lc.LiveStatus, models.LiveStatusEnded, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.Get(ctx, sessionID)
	}

	lc.LiveStatus = models.LiveStatusEnded
	lc.EndedAt = &now

	stopped, err := s.progressRepo.BulkStopLiveForSession(ctx, sessionID, now)
	if err != nil {
		log.Printf("failed to bulk-stop live progress for session %s: %v", sessionID, err)
	} else if stopped > 0 {
		log.Printf("stopped %d live timers on class end for session %s", stopped, sessionID)
	}

	s.rooms.Broadcast(ctx, sessionID, models.WSMessage{
		Type: "class_ended",
		Payload: map[string]any{
			"session_id": sessionID,
			"ended_at":   now,
		},
	})

	return lc, nil
}

// SetCurrentCheckpoint records which checkpoint the instructor is on and
// announces it to the room.
func (s *LiveService) SetCurrentCheckpoint(ctx context.Context, sessionID, userID uuid.UUID, checkpointID *uuid.UUID) error {
	if _, err := s.authorize(ctx, sessionID, userID); err != nil {
		return err
	}

	lc, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if lc.LiveStatus != models.LiveStatusLive {
		return &StateConflictError{Message: "Live class is not running"}
	}

	if err := s.liveRepo.SetCurrentCheckpoint(ctx, lc.ID, checkpointID); err != nil {
		return err
	}

	s.rooms.Broadcast(ctx, sessionID, models.WSMessage{
		Type: "current_checkpoint_changed",
		Payload: map[string]any{
			"session_id":    sessionID,
			"checkpoint_id": checkpointID,
		},
	})
	return nil
}

func (s *LiveService) notifyEnrolled(session *models.Session, title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, err := s.sessionRepo.ListEnrolledUsers(ctx, session.ID)
	if err != nil {
		log.Printf("failed to list enrolled users for session %s: %v", session.ID, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		if u.ID == session.InstructorID {
			continue
		}
		ids = append(ids, u.ID)
		if s.mailer != nil {
			if err := s.mailer.SendLiveStartingEmail(u.Email, session.Title); err != nil {
				log.Printf("failed to email live-start notice to %s: %v", u.Email, err)
			}
		}
	}
	if err := s.notifyRepo.CreateForUsers(ctx, ids, models.NotifyLiveStarted, title, body); err != nil {
		log.Printf("failed to write live notifications for session %s: %v", session.ID, err)
	}
}
