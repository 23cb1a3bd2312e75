package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"aula-backend/internal/handlers"
	"aula-backend/internal/middleware"
	"aula-backend/internal/realtime"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	subjectHandler *handlers.SubjectHandler,
	sessionHandler *handlers.SessionHandler,
	liveHandler *handlers.LiveHandler,
	checkpointHandler *handlers.CheckpointHandler,
	progressHandler *handlers.ProgressHandler,
	attendanceHandler *handlers.AttendanceHandler,
	slideHandler *handlers.SlideHandler,
	chatHandler *handlers.ChatHandler,
	quizHandler *handlers.QuizHandler,
	assignmentHandler *handlers.AssignmentHandler,
	communityHandler *handlers.CommunityHandler,
	notificationHandler *handlers.NotificationHandler,
	jobHandler *handlers.JobHandler,
	hub *realtime.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Put("/password", authHandler.ChangePassword)
			})
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateProfile)
		})

		// ──── Subject Routes ────
		r.Route("/subjects", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", subjectHandler.List)
			r.Post("/join", subjectHandler.Join)
			r.Get("/{id}", subjectHandler.Get)
			r.Get("/{id}/members", subjectHandler.ListMembers)
			r.Get("/{id}/sessions", sessionHandler.ListBySubject)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireInstructor)
				r.Post("/", subjectHandler.Create)
				r.Put("/{id}", subjectHandler.Update)
				r.Delete("/{id}", subjectHandler.Delete)
				r.Put("/{id}/members/{userID}", subjectHandler.SetMemberRole)
				r.Delete("/{id}/members/{userID}", subjectHandler.RemoveMember)
			})
		})

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", sessionHandler.ListEnrolled)
			r.Post("/enroll", sessionHandler.Enroll)
			r.Get("/{id}", sessionHandler.Get)
			r.Get("/{id}/material", sessionHandler.DownloadMaterial)

			// Live class lifecycle
			r.Get("/{id}/live", liveHandler.Get)

			// Checkpoints
			r.Get("/{id}/checkpoints", checkpointHandler.List)

			// Progress (student-facing)
			r.Get("/{id}/progress", progressHandler.SessionProgress)
			r.Post("/{id}/checkpoints/{checkpointID}/start", progressHandler.Start)
			r.Post("/{id}/checkpoints/{checkpointID}/pause", progressHandler.Pause)
			r.Post("/{id}/checkpoints/{checkpointID}/resume", progressHandler.Resume)
			r.Post("/{id}/checkpoints/{checkpointID}/stop", progressHandler.Stop)
			r.Post("/{id}/checkpoints/{checkpointID}/reset", progressHandler.Reset)
			r.Post("/{id}/checkpoints/{checkpointID}/complete", progressHandler.Complete)
			r.Post("/{id}/checkpoints/{checkpointID}/uncomplete", progressHandler.Uncomplete)

			// Attendance
			r.Post("/{id}/attendance/check", attendanceHandler.CheckIn)
			r.Get("/{id}/attendance/me", attendanceHandler.Mine)

			// Slides
			r.Get("/{id}/decks", slideHandler.ListDecks)

			// Chat history
			r.Get("/{id}/chat", chatHandler.History)

			// Quiz
			r.Get("/{id}/quiz/questions", quizHandler.ListQuestions)
			r.Post("/{id}/quiz/start", quizHandler.StartAttempt)

			// Assignments
			r.Post("/{id}/assignment/submit", assignmentHandler.Submit)
			r.Get("/{id}/assignment/me", assignmentHandler.Mine)

			// Instructor-only session management
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireInstructor)
				r.Post("/", sessionHandler.Create)
				r.Put("/{id}", sessionHandler.Update)
				r.Delete("/{id}", sessionHandler.Delete)
				r.Post("/{id}/regenerate-code", sessionHandler.RegenerateInviteCode)
				r.Post("/{id}/material", sessionHandler.UploadMaterial)

				r.Post("/{id}/live/start", liveHandler.Start)
				r.Post("/{id}/live/end", liveHandler.End)

				r.Post("/{id}/checkpoints", checkpointHandler.Create)
				r.Put("/{id}/checkpoints/reorder", checkpointHandler.Reorder)
				r.Put("/{id}/checkpoints/{checkpointID}", checkpointHandler.Update)
				r.Delete("/{id}/checkpoints/{checkpointID}", checkpointHandler.Delete)

				r.Get("/{id}/stats", progressHandler.SessionStats)
				r.Get("/{id}/progress/export", progressHandler.ExportCSV)

				r.Post("/{id}/attendance", attendanceHandler.Mark)
				r.Post("/{id}/attendance/bulk", attendanceHandler.BulkMark)
				r.Get("/{id}/attendance", attendanceHandler.List)
				r.Get("/{id}/attendance/export", attendanceHandler.ExportCSV)

				r.Post("/{id}/decks", slideHandler.Upload)
				r.Delete("/{id}/decks/{deckID}", slideHandler.DeleteDeck)
				r.Put("/{id}/decks/{deckID}/bookmark", slideHandler.SetBookmark)
				r.Post("/{id}/decks/{deckID}/generate-checkpoints", slideHandler.GenerateCheckpoints)
				r.Post("/{id}/save-checkpoints", slideHandler.SaveCheckpoints)

				r.Post("/{id}/quiz/questions", quizHandler.CreateQuestion)
				r.Put("/{id}/quiz/questions/{questionID}", quizHandler.UpdateQuestion)
				r.Delete("/{id}/quiz/questions/{questionID}", quizHandler.DeleteQuestion)
				r.Get("/{id}/quiz/attempts", quizHandler.ListAttempts)

				r.Get("/{id}/assignment/submissions", assignmentHandler.List)
				r.Put("/{id}/assignment/submissions/{submissionID}/grade", assignmentHandler.Grade)
			})
		})

		// ──── Deck Routes (read paths addressed by deck) ────
		r.Route("/decks", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{deckID}", slideHandler.GetDeck)
			r.Get("/{deckID}/slides/{index}", slideHandler.Image)
		})

		// ──── Quiz Attempt Routes ────
		r.Route("/quiz-attempts", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/{attemptID}/submit", quizHandler.SubmitAttempt)
			r.Get("/{attemptID}", quizHandler.GetAttempt)
		})

		// ──── Community Routes ────
		r.Route("/community", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/posts", communityHandler.CreatePost)
			r.Get("/posts", communityHandler.ListPosts)
			r.Get("/posts/{postID}", communityHandler.GetPost)
			r.Put("/posts/{postID}/resolve", communityHandler.ResolvePost)
			r.Post("/posts/{postID}/answers", communityHandler.CreateAnswer)
			r.Put("/answers/{answerID}/accept", communityHandler.AcceptAnswer)
		})

		// ──── Notification Routes ────
		r.Route("/notifications", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", notificationHandler.List)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/read-all", notificationHandler.MarkAllRead)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", hub.HandleWebSocket)
	})

	return r
}
