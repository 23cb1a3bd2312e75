package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type SubjectHandler struct {
	subjectRepo *repository.SubjectRepo
	userRepo    *repository.UserRepo
}

func NewSubjectHandler(subjectRepo *repository.SubjectRepo, userRepo *repository.UserRepo) *SubjectHandler {
	return &SubjectHandler{subjectRepo: subjectRepo, userRepo: userRepo}
}

// newInviteCode returns an 8-character hex code for subject and session
// invitations.
func newInviteCode() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type createSubjectRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=5000"`
	IsVisible   *bool  `json:"is_visible"`
}

func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	visible := true
	if req.IsVisible != nil {
		visible = *req.IsVisible
	}

	subject := &models.Subject{
		ID:           uuid.New(),
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: userID,
		InviteCode:   newInviteCode(),
		IsVisible:    visible,
	}
	if err := h.subjectRepo.Create(r.Context(), subject); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create subject", r))
		return
	}

	// The owner is also the first member.
	h.subjectRepo.AddMember(r.Context(), &models.SubjectMember{
		ID:        uuid.New(),
		SubjectID: subject.ID,
		UserID:    userID,
		Role:      models.MemberRoleInstructor,
	})

	writeJSON(w, http.StatusCreated, subject)
}

func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	subjects, err := h.subjectRepo.ListForUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list subjects", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subjects": subjects})
}

func (h *SubjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	subject, err := h.subjectRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Subject not found", r))
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

// owned loads the subject and verifies the requester is its instructor.
func (h *SubjectHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Subject, bool) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	subject, err := h.subjectRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Subject not found", r))
		return nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if subject.InstructorID != userID && middleware.GetUserRole(r.Context()) != models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not your subject", r))
		return nil, false
	}
	return subject, true
}

func (h *SubjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	subject.Title = req.Title
	subject.Description = req.Description
	if req.IsVisible != nil {
		subject.IsVisible = *req.IsVisible
	}

	if err := h.subjectRepo.Update(r.Context(), subject); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update subject", r))
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *SubjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.subjectRepo.SoftDelete(r.Context(), subject.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete subject", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Subject deleted"})
}

func (h *SubjectHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InviteCode == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "invite_code is required", r))
		return
	}

	subject, err := h.subjectRepo.GetByInviteCode(r.Context(), req.InviteCode)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Invalid invite code", r))
		return
	}

	member := &models.SubjectMember{
		ID:        uuid.New(),
		SubjectID: subject.ID,
		UserID:    userID,
		Role:      models.MemberRoleStudent,
	}
	if err := h.subjectRepo.AddMember(r.Context(), member); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to join subject", r))
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *SubjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	members, err := h.subjectRepo.ListMembers(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list members", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

func (h *SubjectHandler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.owned(w, r)
	if !ok {
		return
	}
	memberID, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !models.ValidMemberRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "A valid role is required", r))
		return
	}

	member := &models.SubjectMember{
		ID:        uuid.New(),
		SubjectID: subject.ID,
		UserID:    memberID,
		Role:      req.Role,
	}
	if err := h.subjectRepo.AddMember(r.Context(), member); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update member", r))
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *SubjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.owned(w, r)
	if !ok {
		return
	}
	memberID, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	if memberID == subject.InstructorID {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "The owning instructor cannot be removed", r))
		return
	}

	if err := h.subjectRepo.RemoveMember(r.Context(), subject.ID, memberID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to remove member", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
}
