package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type CommunityHandler struct {
	communityRepo *repository.CommunityRepo
	notifRepo     *repository.NotificationRepo
}

func NewCommunityHandler(communityRepo *repository.CommunityRepo, notifRepo *repository.NotificationRepo) *CommunityHandler {
	return &CommunityHandler{communityRepo: communityRepo, notifRepo: notifRepo}
}

type postRequest struct {
	SessionID *uuid.UUID `json:"session_id"`
	Title     string     `json:"title" validate:"required,min=1,max=300"`
	Body      string     `json:"body" validate:"required,min=1,max=20000"`
}

func (h *CommunityHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	post := &models.QnAPost{
		UserID:    userID,
		SessionID: req.SessionID,
		Title:     req.Title,
		Body:      req.Body,
	}
	if err := h.communityRepo.CreatePost(r.Context(), post); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create post", r))
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *CommunityHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	var sessionID *uuid.UUID
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session_id", r))
			return
		}
		sessionID = &id
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	posts, err := h.communityRepo.ListPosts(r.Context(), sessionID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list posts", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// GetPost returns the post with its answers. The read bumps the view
// counter.
func (h *CommunityHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := urlUUID(w, r, "postID")
	if !ok {
		return
	}

	post, err := h.communityRepo.GetPost(r.Context(), postID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Post not found", r))
		return
	}

	answers, err := h.communityRepo.ListAnswers(r.Context(), postID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load answers", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"post":    post,
		"answers": answers,
	})
}

func (h *CommunityHandler) ResolvePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := urlUUID(w, r, "postID")
	if !ok {
		return
	}

	done, err := h.communityRepo.MarkResolved(r.Context(), postID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to resolve post", r))
		return
	}
	if !done {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Only the author may resolve a post", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post resolved"})
}

func (h *CommunityHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	postID, ok := urlUUID(w, r, "postID")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Body string `json:"body" validate:"required,min=1,max=20000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	post, err := h.communityRepo.GetPost(r.Context(), postID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Post not found", r))
		return
	}

	answer := &models.QnAAnswer{
		PostID: postID,
		UserID: userID,
		Body:   req.Body,
	}
	if err := h.communityRepo.CreateAnswer(r.Context(), answer); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create answer", r))
		return
	}

	if post.UserID != userID {
		h.notifRepo.Create(r.Context(), &models.Notification{
			UserID: post.UserID,
			Kind:   models.NotifyAnswerPosted,
			Title:  "New answer on your question",
			Body:   post.Title,
		})
	}

	writeJSON(w, http.StatusCreated, answer)
}

func (h *CommunityHandler) AcceptAnswer(w http.ResponseWriter, r *http.Request) {
	answerID, ok := urlUUID(w, r, "answerID")
	if !ok {
		return
	}

	done, err := h.communityRepo.AcceptAnswer(r.Context(), answerID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to accept answer", r))
		return
	}
	if !done {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Only the post author may accept an answer", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Answer accepted"})
}
