package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

// ReminderService runs the periodic nudges: assignment deadlines coming up
// within 24 hours for students who have not submitted yet. One reminder
// per (session, user, deadline) is deduplicated in memory, so a restart
// may repeat at most one reminder.
type ReminderService struct {
	sessionRepo    *repository.SessionRepo
	assignmentRepo *repository.AssignmentRepo
	notifyRepo     *repository.NotificationRepo
	email          *EmailService
	cron           *cron.Cron
	sent           map[string]struct{}
}

func NewReminderService(
	sessionRepo *repository.SessionRepo,
	assignmentRepo *repository.AssignmentRepo,
	notifyRepo *repository.NotificationRepo,
	email *EmailService,
) *ReminderService {
	return &ReminderService{
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		notifyRepo:     notifyRepo,
		email:          email,
		cron:           cron.New(),
		sent:           map[string]struct{}{},
	}
}

// Start schedules the hourly sweep and begins running it.
func (s *ReminderService) Start() error {
	if _, err := s.cron.AddFunc("0 * * * *", s.runAssignmentReminders); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("Reminder scheduler started (hourly)")
	return nil
}

func (s *ReminderService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *ReminderService) runAssignmentReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()
	sessions, err := s.sessionRepo.ListAssignmentsDueBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		log.Printf("assignment reminder sweep failed: %v", err)
		return
	}

	for _, session := range sessions {
		users, err := s.sessionRepo.ListEnrolledUsers(ctx, session.ID)
		if err != nil {
			log.Printf("failed to list enrolled users for %s: %v", session.ID, err)
			continue
		}
		for _, u := range users {
			if u.ID == session.InstructorID {
				continue
			}
			key := fmt.Sprintf("%s:%s:%d", session.ID, u.ID, session.AssignmentDueAt.Unix())
			if _, done := s.sent[key]; done {
				continue
			}
			if _, err := s.assignmentRepo.Get(ctx, session.ID, u.ID); err == nil {
				continue // already submitted
			}

			due := session.AssignmentDueAt.Format(time.RFC1123)
			n := &models.Notification{
				UserID: u.ID,
				Kind:   models.NotifySessionReminder,
				Title:  "Assignment due soon",
				Body:   fmt.Sprintf("%s is due %s", session.Title, due),
			}
			if err := s.notifyRepo.Create(ctx, n); err != nil {
				log.Printf("failed to write reminder notification: %v", err)
				continue
			}
			go s.email.SendAssignmentDueEmail(u.Email, session.Title, due)
			s.sent[key] = struct{}{}
		}
	}
}
