package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
	"aula-backend/internal/services"
)

type ProgressHandler struct {
	progressService *services.ProgressService
	progressRepo    *repository.ProgressRepo
	sessionRepo     *repository.SessionRepo
}

func NewProgressHandler(progressService *services.ProgressService, progressRepo *repository.ProgressRepo, sessionRepo *repository.SessionRepo) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		progressRepo:    progressRepo,
		sessionRepo:     sessionRepo,
	}
}

type progressRequest struct {
	Mode string `json:"mode"`
}

// mode reads the timer mode from the request body, defaulting to
// self-paced study.
func progressMode(r *http.Request) (string, error) {
	var req progressRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Mode == "" {
		return models.ProgressModeSelfPaced, nil
	}
	if !models.ValidProgressMode(req.Mode) {
		return "", fmt.Errorf("unknown mode %q", req.Mode)
	}
	return req.Mode, nil
}

type progressOp func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error)

func (h *ProgressHandler) act(w http.ResponseWriter, r *http.Request, op progressOp) {
	checkpointID, ok := urlUUID(w, r, "checkpointID")
	if !ok {
		return
	}

	mode, err := progressMode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	p, err := op(h, r, middleware.GetUserID(r.Context()), checkpointID, mode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Start(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Pause(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Resume(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Stop(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Reset(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Complete(r.Context(), userID, checkpointID, mode)
	})
}

func (h *ProgressHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(h *ProgressHandler, r *http.Request, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
		return h.progressService.Uncomplete(r.Context(), userID, checkpointID, mode)
	})
}

// SessionProgress returns the caller's own rows for every checkpoint of a
// session in one mode.
func (h *ProgressHandler) SessionProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.ProgressModeSelfPaced
	}
	if !models.ValidProgressMode(mode) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown mode", r))
		return
	}

	list, err := h.progressService.SessionProgress(r.Context(), middleware.GetUserID(r.Context()), sessionID, mode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": list})
}

// ownedSession verifies the requester owns the session in the URL.
func (h *ProgressHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
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

// SessionStats is the instructor's per-checkpoint aggregate view.
func (h *ProgressHandler) SessionStats(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.ProgressModeLive
	}
	if !models.ValidProgressMode(mode) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown mode", r))
		return
	}

	stats, err := h.progressService.SessionStats(r.Context(), session.ID, mode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// ExportCSV streams every student's per-checkpoint timer state.
func (h *ProgressHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.ProgressModeLive
	}
	if !models.ValidProgressMode(mode) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown mode", r))
		return
	}

	rows, err := h.progressRepo.ExportRows(r.Context(), session.ID, mode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to export progress", r))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="progress-`+session.ID.String()+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"name", "email", "checkpoint", "seq", "completed", "seconds"})
	for _, row := range rows {
		cw.Write([]string{
			row.FullName,
			row.Email,
			row.CheckpointTitle,
			fmt.Sprintf("%d", row.Seq),
			fmt.Sprintf("%t", row.Completed),
			fmt.Sprintf("%d", row.Seconds),
		})
	}
	cw.Flush()
}
