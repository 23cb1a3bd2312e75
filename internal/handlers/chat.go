package handlers

import (
	"net/http"
	"strconv"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type ChatHandler struct {
	chatRepo    *repository.ChatRepo
	sessionRepo *repository.SessionRepo
}

func NewChatHandler(chatRepo *repository.ChatRepo, sessionRepo *repository.SessionRepo) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, sessionRepo: sessionRepo}
}

// History returns recent messages for a session room. Live traffic flows
// over the socket; this backfills on page load.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
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

	if session.InstructorID != userID && middleware.GetUserRole(r.Context()) != models.RoleAdmin {
		enrolled, err := h.sessionRepo.IsEnrolled(r.Context(), sessionID, userID)
		if err != nil || !enrolled {
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not enrolled in this session", r))
			return
		}
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := h.chatRepo.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list messages", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
