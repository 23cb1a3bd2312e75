package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
	"aula-backend/internal/services"
)

const maxMaterialUploadBytes = 100 << 20

type SessionHandler struct {
	sessionRepo *repository.SessionRepo
	userRepo    *repository.UserRepo
	email       *services.EmailService
	storagePath string
}

func NewSessionHandler(sessionRepo *repository.SessionRepo, userRepo *repository.UserRepo, email *services.EmailService, storagePath string) *SessionHandler {
	return &SessionHandler{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		email:       email,
		storagePath: storagePath,
	}
}

type sessionRequest struct {
	SubjectID             *uuid.UUID `json:"subject_id"`
	Title                 string     `json:"title" validate:"required,min=1,max=200"`
	Description           string     `json:"description" validate:"max=10000"`
	SessionType           string     `json:"session_type" validate:"required"`
	WeekNumber            *int       `json:"week_number" validate:"omitempty,min=1,max=52"`
	Visibility            string     `json:"visibility" validate:"omitempty,oneof=public private"`
	VideoURL              *string    `json:"video_url" validate:"omitempty,url"`
	AssignmentDescription *string    `json:"assignment_description"`
	AssignmentDueAt       *time.Time `json:"assignment_due_at"`
	QuizTimeLimit         *int       `json:"quiz_time_limit" validate:"omitempty,min=1"`
	QuizPassScore         *int       `json:"quiz_pass_score" validate:"omitempty,min=0"`
	AttendanceStart       *time.Time `json:"attendance_start"`
	AttendanceEnd         *time.Time `json:"attendance_end"`
	LateAllowed           bool       `json:"late_allowed"`
	LateEnd               *time.Time `json:"late_end"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}
	if !models.ValidSessionType(req.SessionType) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown session type", r))
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}

	session := &models.Session{
		ID:                    uuid.New(),
		SubjectID:             req.SubjectID,
		InstructorID:          userID,
		Title:                 req.Title,
		Description:           req.Description,
		SessionType:           req.SessionType,
		InviteCode:            newInviteCode(),
		WeekNumber:            req.WeekNumber,
		Visibility:            visibility,
		VideoURL:              req.VideoURL,
		AssignmentDescription: req.AssignmentDescription,
		AssignmentDueAt:       req.AssignmentDueAt,
		QuizTimeLimit:         req.QuizTimeLimit,
		QuizPassScore:         req.QuizPassScore,
		AttendanceStart:       req.AttendanceStart,
		AttendanceEnd:         req.AttendanceEnd,
		LateAllowed:           req.LateAllowed,
		LateEnd:               req.LateEnd,
	}
	if err := h.sessionRepo.Create(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	sessions, err := h.sessionRepo.ListBySubject(r.Context(), subjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) ListEnrolled(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, err := h.sessionRepo.ListEnrolled(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessionRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// owned loads the session and verifies the requester is its instructor.
func (h *SessionHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	session, err := h.sessionRepo.GetByID(r.Context(), id)
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

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	session.Title = req.Title
	session.Description = req.Description
	session.WeekNumber = req.WeekNumber
	if req.Visibility != "" {
		session.Visibility = req.Visibility
	}
	session.VideoURL = req.VideoURL
	session.AssignmentDescription = req.AssignmentDescription
	session.AssignmentDueAt = req.AssignmentDueAt
	session.QuizTimeLimit = req.QuizTimeLimit
	session.QuizPassScore = req.QuizPassScore
	session.AttendanceStart = req.AttendanceStart
	session.AttendanceEnd = req.AttendanceEnd
	session.LateAllowed = req.LateAllowed
	session.LateEnd = req.LateEnd

	if err := h.sessionRepo.Update(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update session", r))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.sessionRepo.SoftDelete(r.Context(), session.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete session", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}

func (h *SessionHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	code := newInviteCode()
	if err := h.sessionRepo.SetInviteCode(r.Context(), session.ID, code); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to regenerate invite code", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

func (h *SessionHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InviteCode == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "invite_code is required", r))
		return
	}

	session, err := h.sessionRepo.GetByInviteCode(r.Context(), req.InviteCode)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Invalid invite code", r))
		return
	}

	if _, err := h.sessionRepo.Enroll(r.Context(), session.ID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enroll", r))
		return
	}

	go func() {
		user, err := h.userRepo.GetByID(r.Context(), userID)
		if err != nil {
			return
		}
		if err := h.email.SendEnrollmentEmail(user.Email, session.Title); err != nil {
			log.Printf("failed to send enrollment email to %s: %v", user.Email, err)
		}
	}()

	writeJSON(w, http.StatusOK, session)
}

// UploadMaterial stores the lecture material file for a material session.
func (h *SessionHandler) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	session, ok := h.owned(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMaterialUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File exceeds the upload limit", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "file is required", r))
		return
	}
	defer file.Close()

	relPath := filepath.Join("materials", session.ID.String()+filepath.Ext(header.Filename))
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

	if err := h.sessionRepo.SetMaterial(r.Context(), session.ID, relPath, header.Filename); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save material", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"material_name": header.Filename})
}

// DownloadMaterial streams the stored material file to an enrolled user.
func (h *SessionHandler) DownloadMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessionRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	if session.MaterialPath == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session has no material", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if session.InstructorID != userID {
		enrolled, err := h.sessionRepo.IsEnrolled(r.Context(), session.ID, userID)
		if err != nil || !enrolled {
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not enrolled in this session", r))
			return
		}
	}

	name := "material"
	if session.MaterialName != nil {
		name = *session.MaterialName
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	http.ServeFile(w, r, filepath.Join(h.storagePath, *session.MaterialPath))
}
