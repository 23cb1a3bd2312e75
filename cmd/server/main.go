package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aula-backend/internal/config"
	"aula-backend/internal/database"
	"aula-backend/internal/handlers"
	"aula-backend/internal/middleware"
	"aula-backend/internal/realtime"
	"aula-backend/internal/repository"
	"aula-backend/internal/router"
	"aula-backend/internal/services"
	"aula-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Aula Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Printf("✓ Environment variables loaded (env: %s)", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	subjectRepo := repository.NewSubjectRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	liveRepo := repository.NewLiveRepo(pool)
	checkpointRepo := repository.NewCheckpointRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	attendanceRepo := repository.NewAttendanceRepo(pool)
	slideRepo := repository.NewSlideRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	assignmentRepo := repository.NewAssignmentRepo(pool)
	communityRepo := repository.NewCommunityRepo(pool)
	notifRepo := repository.NewNotificationRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	youtubeService := services.NewYouTubeService()
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth)
	progressService := services.NewProgressService(progressRepo, checkpointRepo)
	converterService := services.NewConverterService(slideRepo, cfg.StoragePath, cfg.LibreOfficeBin, cfg.PdftoppmBin)

	checkpointGen, err := services.NewCheckpointGenService(
		cfg.GeminiAPIKey,
		cfg.GeminiBaseURL,
		cfg.GeminiConcurrentReqs,
		slideRepo,
		sessionRepo,
		converterService,
		youtubeService,
		redisClients.Queue,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer checkpointGen.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Step 5: Start WebSocket Hub ────
	hub := realtime.NewHub(redisClients.PubSub, jwtAuth)
	liveService := services.NewLiveService(liveRepo, sessionRepo, progressRepo, notifRepo, emailService, hub)
	hub.SetRouter(realtime.NewEventRouter(
		sessionRepo,
		userRepo,
		chatRepo,
		slideRepo,
		liveRepo,
		progressService,
		liveService,
	))
	log.Println("✓ WebSocket hub started")

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		converterService,
		checkpointGen,
		jobRepo,
		slideRepo,
		notifRepo,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start Reminder Scheduler ────
	reminderService := services.NewReminderService(sessionRepo, assignmentRepo, notifRepo, emailService)
	if err := reminderService.Start(); err != nil {
		log.Fatalf("✗ Reminder scheduler failed to start: %v", err)
	}
	log.Println("✓ Reminder scheduler started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userRepo)
	subjectHandler := handlers.NewSubjectHandler(subjectRepo, userRepo)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, userRepo, emailService, cfg.StoragePath)
	liveHandler := handlers.NewLiveHandler(liveService)
	checkpointHandler := handlers.NewCheckpointHandler(checkpointRepo, sessionRepo)
	progressHandler := handlers.NewProgressHandler(progressService, progressRepo, sessionRepo)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceRepo, sessionRepo, liveRepo)
	slideHandler := handlers.NewSlideHandler(slideRepo, sessionRepo, checkpointRepo, converterService, workerPool)
	chatHandler := handlers.NewChatHandler(chatRepo, sessionRepo)
	quizHandler := handlers.NewQuizHandler(quizRepo, sessionRepo)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentRepo, sessionRepo, notifRepo, cfg.StoragePath)
	communityHandler := handlers.NewCommunityHandler(communityRepo, notifRepo)
	notificationHandler := handlers.NewNotificationHandler(notifRepo)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		userHandler,
		subjectHandler,
		sessionHandler,
		liveHandler,
		checkpointHandler,
		progressHandler,
		attendanceHandler,
		slideHandler,
		chatHandler,
		quizHandler,
		assignmentHandler,
		communityHandler,
		notificationHandler,
		jobHandler,
		hub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		reminderService.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Aula Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
