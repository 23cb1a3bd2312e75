package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
	"aula-backend/internal/repository"
	"aula-backend/internal/services"
)

type QuizHandler struct {
	quizRepo    *repository.QuizRepo
	sessionRepo *repository.SessionRepo
}

func NewQuizHandler(quizRepo *repository.QuizRepo, sessionRepo *repository.SessionRepo) *QuizHandler {
	return &QuizHandler{quizRepo: quizRepo, sessionRepo: sessionRepo}
}

// ownedSession verifies the requester owns the session in the URL.
func (h *QuizHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
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

type questionRequest struct {
	QuestionText  string   `json:"question_text" validate:"required,min=1,max=2000"`
	QuestionType  string   `json:"question_type" validate:"required"`
	Options       []string `json:"options" validate:"max=10"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Points        int      `json:"points" validate:"min=1,max=100"`
	Seq           int      `json:"seq" validate:"min=0"`
}

func (h *QuizHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}
	if !models.ValidQuestionType(req.QuestionType) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown question type", r))
		return
	}
	if req.QuestionType == models.QuestionMultipleChoice && len(req.Options) < 2 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Multiple choice questions need at least two options", r))
		return
	}

	q := &models.QuizQuestion{
		SessionID:     session.ID,
		QuestionText:  req.QuestionText,
		QuestionType:  req.QuestionType,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
		Seq:           req.Seq,
	}
	if err := h.quizRepo.CreateQuestion(r.Context(), q); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create question", r))
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *QuizHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	questionID, ok := urlUUID(w, r, "questionID")
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationFields(err), r))
		return
	}

	q := &models.QuizQuestion{
		ID:            questionID,
		SessionID:     session.ID,
		QuestionText:  req.QuestionText,
		QuestionType:  req.QuestionType,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
		Seq:           req.Seq,
	}
	if err := h.quizRepo.UpdateQuestion(r.Context(), q); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update question", r))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuizHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedSession(w, r); !ok {
		return
	}
	questionID, ok := urlUUID(w, r, "questionID")
	if !ok {
		return
	}

	if err := h.quizRepo.DeleteQuestion(r.Context(), questionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete question", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Question deleted"})
}

// ListQuestions returns the session's questions. Correct answers never
// serialize, so the same payload serves students and instructors.
func (h *QuizHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	questions, err := h.quizRepo.ListQuestions(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list questions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// StartAttempt opens an attempt for the caller and returns the questions.
func (h *QuizHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
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

	questions, err := h.quizRepo.ListQuestions(r.Context(), sessionID)
	if err != nil || len(questions) == 0 {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "This session has no quiz questions", r))
		return
	}

	maxScore := 0
	for _, q := range questions {
		maxScore += q.Points
	}

	attempt := &models.QuizAttempt{
		SessionID: sessionID,
		UserID:    userID,
		MaxScore:  maxScore,
	}
	if err := h.quizRepo.CreateAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start attempt", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attempt":          attempt,
		"questions":        questions,
		"time_limit_min":   session.QuizTimeLimit,
		"pass_score":       session.QuizPassScore,
	})
}

// SubmitAttempt grades the answers server-side and closes the attempt.
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := urlUUID(w, r, "attemptID")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	attempt, err := h.quizRepo.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Attempt not found", r))
		return
	}
	if attempt.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not your attempt", r))
		return
	}
	if attempt.CompletedAt != nil {
		writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "Attempt already submitted", r))
		return
	}

	session, err := h.sessionRepo.GetByID(r.Context(), attempt.SessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	if session.QuizTimeLimit != nil {
		deadline := attempt.StartedAt.Add(time.Duration(*session.QuizTimeLimit) * time.Minute)
		if time.Now().After(deadline) {
			writeJSON(w, http.StatusConflict, errorResp("STATE_CONFLICT", "The time limit has passed", r))
			return
		}
	}

	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	questions, err := h.quizRepo.ListQuestions(r.Context(), attempt.SessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to grade attempt", r))
		return
	}

	result := services.GradeQuiz(questions, req.Answers, session.QuizPassScore)
	attempt.Score = &result.Score
	attempt.MaxScore = result.MaxScore
	attempt.Answers = req.Answers

	if err := h.quizRepo.CompleteAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save attempt", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt": attempt,
		"result":  result,
	})
}

func (h *QuizHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := urlUUID(w, r, "attemptID")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	attempt, err := h.quizRepo.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Attempt not found", r))
		return
	}

	if attempt.UserID != userID {
		session, err := h.sessionRepo.GetByID(r.Context(), attempt.SessionID)
		if err != nil || (session.InstructorID != userID && middleware.GetUserRole(r.Context()) != models.RoleAdmin) {
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Not your attempt", r))
			return
		}
	}
	writeJSON(w, http.StatusOK, attempt)
}

// ListAttempts is the instructor's results view.
func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	attempts, err := h.quizRepo.ListAttempts(r.Context(), session.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list attempts", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}
