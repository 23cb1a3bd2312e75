package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type CheckpointHandler struct {
	checkpointRepo *repository.CheckpointRepo
	sessionRepo    *repository.SessionRepo
}

func NewCheckpointHandler(checkpointRepo *repository.CheckpointRepo, sessionRepo *repository.SessionRepo) *CheckpointHandler {
	return &CheckpointHandler{checkpointRepo: checkpointRepo, sessionRepo: sessionRepo}
}

// ownedSession verifies the requester owns the session in the URL.
func (h *CheckpointHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
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

type checkpointRequest struct {
	Title            string `json:"title" validate:"required,min=1,max=200"`
	Description      string `json:"description" validate:"max=5000"`
	EstimatedMinutes *int   `json:"estimated_minutes" validate:"omitempty,min=1,max=600"`
}

func (h *CheckpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req checkpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	seq, err := h.checkpointRepo.NextSeq(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create checkpoint", r))
		return
	}

	cp := &models.Checkpoint{
		SessionID:        session.ID,
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		Seq:              seq,
	}
	if err := h.checkpointRepo.Create(r.Context(), cp); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create checkpoint", r))
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (h *CheckpointHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	cps, err := h.checkpointRepo.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list checkpoints", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"checkpoints": cps})
}

func (h *CheckpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	checkpointID, ok := urlUUID(w, r, "checkpointID")
	if !ok {
		return
	}

	cp, err := h.checkpointRepo.GetByID(r.Context(), checkpointID)
	if err != nil || cp.SessionID != session.ID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Checkpoint not found", r))
		return
	}

	var req checkpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	cp.Title = req.Title
	cp.Description = req.Description
	cp.EstimatedMinutes = req.EstimatedMinutes

	if err := h.checkpointRepo.Update(r.Context(), cp); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update checkpoint", r))
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (h *CheckpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	checkpointID, ok := urlUUID(w, r, "checkpointID")
	if !ok {
		return
	}

	cp, err := h.checkpointRepo.GetByID(r.Context(), checkpointID)
	if err != nil || cp.SessionID != session.ID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Checkpoint not found", r))
		return
	}

	if err := h.checkpointRepo.SoftDelete(r.Context(), checkpointID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete checkpoint", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Checkpoint deleted"})
}

func (h *CheckpointHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req struct {
		CheckpointIDs []uuid.UUID `json:"checkpoint_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.CheckpointIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "checkpoint_ids is required", r))
		return
	}

	if err := h.checkpointRepo.Reorder(r.Context(), session.ID, req.CheckpointIDs); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to reorder checkpoints", r))
		return
	}

	cps, err := h.checkpointRepo.ListBySession(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list checkpoints", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"checkpoints": cps})
}
