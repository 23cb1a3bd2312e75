package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type AttendanceHandler struct {
	attendanceRepo *repository.AttendanceRepo
	sessionRepo    *repository.SessionRepo
	liveRepo       *repository.LiveRepo
}

func NewAttendanceHandler(attendanceRepo *repository.AttendanceRepo, sessionRepo *repository.SessionRepo, liveRepo *repository.LiveRepo) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceRepo: attendanceRepo,
		sessionRepo:    sessionRepo,
		liveRepo:       liveRepo,
	}
}

// CheckIn is the student self-service path. The session's attendance
// window decides present versus late; outside every window the check-in
// is rejected.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
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

	enrolled, err := h.sessionRepo.IsEnrolled(r.Context(), sessionID, userID)
	if err != nil || !enrolled {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not enrolled in this session", r))
		return
	}

	now := time.Now()
	status := session.AttendanceStatusAt(now)
	if status == "" {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "The attendance window is closed", r))
		return
	}

	var liveClassID *uuid.UUID
	if lc, err := h.liveRepo.GetLatestForSession(r.Context(), sessionID); err == nil {
		liveClassID = &lc.ID
	}

	a := &models.Attendance{
		SessionID:   sessionID,
		UserID:      userID,
		LiveClassID: liveClassID,
		Status:      status,
		CheckedAt:   now,
	}
	if err := h.attendanceRepo.Upsert(r.Context(), a); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record attendance", r))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ownedSession verifies the requester owns the session in the URL.
func (h *AttendanceHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
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

type markRequest struct {
	UserID      uuid.UUID  `json:"user_id" validate:"required"`
	LiveClassID *uuid.UUID `json:"live_class_id"`
	Status      string     `json:"status" validate:"required"`
	Notes       string     `json:"notes" validate:"max=1000"`
}

// Mark lets the instructor set or override a single student's record.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	instructorID := middleware.GetUserID(r.Context())

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}
	if !models.ValidAttendanceStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown attendance status", r))
		return
	}

	a := &models.Attendance{
		SessionID:   session.ID,
		UserID:      req.UserID,
		LiveClassID: req.LiveClassID,
		Status:      req.Status,
		CheckedAt:   time.Now(),
		CheckedBy:   &instructorID,
		Notes:       req.Notes,
	}
	if err := h.attendanceRepo.Upsert(r.Context(), a); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to record attendance", r))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// BulkMark applies one status to a list of students at once.
func (h *AttendanceHandler) BulkMark(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	instructorID := middleware.GetUserID(r.Context())

	var req struct {
		UserIDs     []uuid.UUID `json:"user_ids"`
		LiveClassID *uuid.UUID  `json:"live_class_id"`
		Status      string      `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.UserIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "user_ids is required", r))
		return
	}
	if !models.ValidAttendanceStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown attendance status", r))
		return
	}

	now := time.Now()
	marked := 0
	for _, studentID := range req.UserIDs {
		a := &models.Attendance{
			SessionID:   session.ID,
			UserID:      studentID,
			LiveClassID: req.LiveClassID,
			Status:      req.Status,
			CheckedAt:   now,
			CheckedBy:   &instructorID,
		}
		if err := h.attendanceRepo.Upsert(r.Context(), a); err == nil {
			marked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// List is the instructor's roster view.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	records, err := h.attendanceRepo.ListBySession(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list attendance", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attendance": records})
}

// Mine returns the caller's own record for the session.
func (h *AttendanceHandler) Mine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var liveClassID *uuid.UUID
	if lc, err := h.liveRepo.GetLatestForSession(r.Context(), sessionID); err == nil {
		liveClassID = &lc.ID
	}

	a, err := h.attendanceRepo.Get(r.Context(), sessionID, middleware.GetUserID(r.Context()), liveClassID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No attendance record", r))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ExportCSV streams the roster with one row per student record.
func (h *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	records, err := h.attendanceRepo.ListBySession(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to export attendance", r))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="attendance-`+session.ID.String()+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"name", "email", "status", "checked_at", "notes"})
	for _, rec := range records {
		cw.Write([]string{
			rec.FullName,
			rec.Email,
			rec.Status,
			rec.CheckedAt.Format(time.RFC3339),
			rec.Notes,
		})
	}
	cw.Flush()
}
