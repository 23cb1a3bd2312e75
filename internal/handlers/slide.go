package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
	"aula-backend/internal/services"
)

// jobEnqueuer is the slice of the worker pool the handler needs.
type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

const (
	defaultFlagThresholdCount = 3
	defaultFlagThresholdRate  = 0.5
)

type SlideHandler struct {
	slideRepo      *repository.SlideRepo
	sessionRepo    *repository.SessionRepo
	checkpointRepo *repository.CheckpointRepo
	converter      *services.ConverterService
	jobs           jobEnqueuer
}

func NewSlideHandler(
	slideRepo *repository.SlideRepo,
	sessionRepo *repository.SessionRepo,
	checkpointRepo *repository.CheckpointRepo,
	converter *services.ConverterService,
	jobs jobEnqueuer,
) *SlideHandler {
	return &SlideHandler{
		slideRepo:      slideRepo,
		sessionRepo:    sessionRepo,
		checkpointRepo: checkpointRepo,
		converter:      converter,
		jobs:           jobs,
	}
}

// ownedSession verifies the requester owns the session in the URL.
func (h *SlideHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
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

func deckFileAllowed(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".ppt", ".pptx":
		return true
	}
	return false
}

// Upload accepts a deck file, creates the pending deck row and queues
// the conversion job. The client polls the deck (or listens on the room
// socket) for the outcome.
func (h *SlideHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, models.MaxDeckUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File exceeds the 50MB upload limit", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "file is required", r))
		return
	}
	defer file.Close()

	if !deckFileAllowed(header.Filename) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Only .pdf, .ppt and .pptx files are accepted", r))
		return
	}

	deck := &models.SlideDeck{
		SessionID:          session.ID,
		FileName:           header.Filename,
		FlagThresholdCount: defaultFlagThresholdCount,
		FlagThresholdRate:  defaultFlagThresholdRate,
	}
	if err := h.slideRepo.CreateDeck(r.Context(), deck); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create deck", r))
		return
	}

	dst := h.converter.UploadPath(deck.ID, header.Filename)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	out, err := os.Create(dst)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.JobTypeSlideConversion,
		ReferenceID: deck.ID,
		Status:      models.JobStatusPending,
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue conversion", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"deck":   deck,
		"job_id": job.ID,
	})
}

func (h *SlideHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	decks, err := h.slideRepo.ListDecksBySession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list decks", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

func (h *SlideHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := urlUUID(w, r, "deckID")
	if !ok {
		return
	}

	deck, err := h.slideRepo.GetDeck(r.Context(), deckID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}

	tallies, err := h.slideRepo.TallyAllReactions(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load reactions", r))
		return
	}
	bookmarks, err := h.slideRepo.ListBookmarks(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load bookmarks", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deck":      deck,
		"tallies":   tallies,
		"bookmarks": bookmarks,
	})
}

func (h *SlideHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	deckID, ok := urlUUID(w, r, "deckID")
	if !ok {
		return
	}

	deck, err := h.slideRepo.GetDeck(r.Context(), deckID)
	if err != nil || deck.SessionID != session.ID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}

	if err := h.slideRepo.DeleteDeck(r.Context(), deckID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete deck", r))
		return
	}
	os.RemoveAll(filepath.Dir(h.converter.SlidePath(deckID, 0)))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

// Image serves a single rendered slide.
func (h *SlideHandler) Image(w http.ResponseWriter, r *http.Request) {
	deckID, ok := urlUUID(w, r, "deckID")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid slide index", r))
		return
	}

	deck, err := h.slideRepo.GetDeck(r.Context(), deckID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}
	if deck.ConversionStatus != models.ConversionReady || index >= deck.SlideCount {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Slide not found", r))
		return
	}

	http.ServeFile(w, r, h.converter.SlidePath(deckID, index))
}

type bookmarkRequest struct {
	SlideIndex    int    `json:"slide_index" validate:"min=0"`
	On            bool   `json:"on"`
	Memo          string `json:"memo" validate:"max=2000"`
	SupplementURL string `json:"supplement_url" validate:"omitempty,url"`
}

// SetBookmark toggles the manual bookmark and its memo on a slide.
func (h *SlideHandler) SetBookmark(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	deckID, ok := urlUUID(w, r, "deckID")
	if !ok {
		return
	}

	deck, err := h.slideRepo.GetDeck(r.Context(), deckID)
	if err != nil || deck.SessionID != session.ID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}

	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}
	if req.SlideIndex >= deck.SlideCount {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Slide index out of range", r))
		return
	}

	if err := h.slideRepo.SetManualBookmark(r.Context(), deckID, req.SlideIndex, req.On, req.Memo, req.SupplementURL); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update bookmark", r))
		return
	}

	bm, err := h.slideRepo.GetBookmark(r.Context(), deckID, req.SlideIndex)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Bookmark cleared"})
		return
	}
	writeJSON(w, http.StatusOK, bm)
}

// GenerateCheckpoints queues an AI suggestion job for the deck.
func (h *SlideHandler) GenerateCheckpoints(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	deckID, ok := urlUUID(w, r, "deckID")
	if !ok {
		return
	}

	deck, err := h.slideRepo.GetDeck(r.Context(), deckID)
	if err != nil || deck.SessionID != session.ID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}
	if deck.ConversionStatus != models.ConversionReady && session.VideoURL == nil {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "Deck is not ready and the session has no video source", r))
		return
	}

	job := &models.Job{
		ID:          uuid.New(),
		UserID:      middleware.GetUserID(r.Context()),
		Type:        models.JobTypeCheckpointGeneration,
		ReferenceID: deck.ID,
		Status:      models.JobStatusPending,
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue generation", r))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID})
}

// SaveCheckpoints persists accepted AI suggestions as real checkpoints,
// appended after the session's current maximum sequence.
func (h *SlideHandler) SaveCheckpoints(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Suggestions []models.CheckpointSuggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Suggestions) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "suggestions is required", r))
		return
	}

	seq, err := h.checkpointRepo.NextSeq(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save checkpoints", r))
		return
	}

	saved := make([]*models.Checkpoint, 0, len(req.Suggestions))
	for i, sg := range req.Suggestions {
		if strings.TrimSpace(sg.Title) == "" {
			continue
		}
		minutes := sg.EstimatedMinutes
		cp := &models.Checkpoint{
			SessionID:        session.ID,
			Title:            sg.Title,
			Description:      sg.Description,
			EstimatedMinutes: &minutes,
			Seq:              seq + i,
		}
		if err := h.checkpointRepo.Create(r.Context(), cp); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save checkpoints", r))
			return
		}
		saved = append(saved, cp)
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"checkpoints": saved})
}
