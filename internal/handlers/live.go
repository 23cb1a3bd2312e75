package handlers

import (
	"net/http"

	"aula-backend/internal/middleware"
	"aula-backend/internal/services"
)

type LiveHandler struct {
	liveService *services.LiveService
}

func NewLiveHandler(liveService *services.LiveService) *LiveHandler {
	return &LiveHandler{liveService: liveService}
}

func (h *LiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	lc, err := h.liveService.Get(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lc)
}

func (h *LiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	lc, err := h.liveService.Start(r.Context(), sessionID, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lc)
}

func (h *LiveHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	lc, err := h.liveService.End(r.Context(), sessionID, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lc)
}
