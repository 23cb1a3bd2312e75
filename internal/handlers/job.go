package handlers

import (
	"net/http"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type JobHandler struct {
	jobRepo *repository.JobRepo
}

func NewJobHandler(jobRepo *repository.JobRepo) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

// Get reports the status of one background job to its owner.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if job.UserID != userID && middleware.GetUserRole(r.Context()) != models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not your job", r))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
