package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

const maxAssignmentUploadBytes = 100 << 20

type AssignmentHandler struct {
	assignmentRepo *repository.AssignmentRepo
	sessionRepo    *repository.SessionRepo
	notifRepo      *repository.NotificationRepo
	storagePath    string
}

func NewAssignmentHandler(assignmentRepo *repository.AssignmentRepo, sessionRepo *repository.SessionRepo, notifRepo *repository.NotificationRepo, storagePath string) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentRepo: assignmentRepo,
		sessionRepo:    sessionRepo,
		notifRepo:      notifRepo,
		storagePath:    storagePath,
	}
}

// Submit stores or replaces the caller's submission. Resubmitting before
// the deadline resets any earlier grade.
func (h *AssignmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessionRepo.GetByID(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	if session.SessionType != models.SessionTypeAssignment {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "This session does not accept submissions", r))
		return
	}
	if session.AssignmentDueAt != nil && time.Now().After(*session.AssignmentDueAt) {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "The deadline has passed", r))
		return
	}

	enrolled, err := h.sessionRepo.IsEnrolled(r.Context(), sessionID, userID)
	if err != nil || !enrolled {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not enrolled in this session", r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAssignmentUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File exceeds the upload limit", r))
		return
	}

	sub := &models.AssignmentSubmission{
		SessionID: sessionID,
		UserID:    userID,
		Content:   r.FormValue("content"),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()

		relPath := filepath.Join("submissions", sessionID.String(), userID.String()+filepath.Ext(header.Filename))
		fullPath := filepath.Join(h.storagePath, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
			return
		}
		dst, err := os.Create(fullPath)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, file); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
			return
		}

		sub.FilePath = &relPath
		name := header.Filename
		sub.FileName = &name
	}

	if sub.Content == "" && sub.FilePath == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "A submission needs content or a file", r))
		return
	}

	if err := h.assignmentRepo.Upsert(r.Context(), sub); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save submission", r))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Mine returns the caller's own submission for the session.
func (h *AssignmentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.assignmentRepo.Get(r.Context(), sessionID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No submission", r))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ownedSession verifies the requester owns the session in the URL.
func (h *AssignmentHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	session, err := h.sessionRepo.GetByID(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if session.InstructorID != userID && middleware.GetUserRole(r.Context()) != models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not your session", r))
		return nil, false
	}
	return session, true
}

func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	subs, err := h.assignmentRepo.ListBySession(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list submissions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

type gradeRequest struct {
	Score    int    `json:"score" validate:"min=0,max=1000"`
	Feedback string `json:"feedback" validate:"max=10000"`
}

func (h *AssignmentHandler) Grade(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	submissionID, ok := urlUUID(w, r, "submissionID")
	if !ok {
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	graderID := middleware.GetUserID(r.Context())
	if err := h.assignmentRepo.Grade(r.Context(), submissionID, req.Score, req.Feedback, graderID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to grade submission", r))
		return
	}

	subs, err := h.assignmentRepo.ListBySession(r.Context(), session.ID)
	if err == nil {
		for _, sub := range subs {
			if sub.ID == submissionID {
				h.notifRepo.Create(r.Context(), &models.Notification{
					UserID: sub.UserID,
					Kind:   models.NotifyGraded,
					Title:  "Assignment graded",
					Body:   session.Title + " has been graded.",
				})
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Submission graded"})
}
