package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
	"aula-backend/internal/services"
)

const (
	QueueSlideConversion      = "queue:slide-conversion"
	QueueCheckpointGeneration = "queue:checkpoint-generation"
)

// Pool runs background jobs pulled off Redis queues: slide deck
// conversion and AI checkpoint generation. Jobs are claimed with a
// per-job lock so multiple instances can share the queues.
type Pool struct {
	redis       *redis.Client
	converter   *services.ConverterService
	checkpoints *services.CheckpointGenService
	jobRepo     *repository.JobRepo
	slideRepo   *repository.SlideRepo
	notifRepo   *repository.NotificationRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	converter *services.ConverterService,
	checkpoints *services.CheckpointGenService,
	jobRepo *repository.JobRepo,
	slideRepo *repository.SlideRepo,
	notifRepo *repository.NotificationRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		converter:   converter,
		checkpoints: checkpoints,
		jobRepo:     jobRepo,
		slideRepo:   slideRepo,
		notifRepo:   notifRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// Enqueue persists a job row and pushes it onto its queue.
func (p *Pool) Enqueue(ctx context.Context, job *models.Job) error {
	if err := p.jobRepo.Create(ctx, job); err != nil {
		return err
	}
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err()
}

func QueueName(jobType string) string {
	switch jobType {
	case models.JobTypeSlideConversion:
		return QueueSlideConversion
	case models.JobTypeCheckpointGeneration:
		return QueueCheckpointGeneration
	default:
		return "queue:" + jobType
	}
}

func (p *Pool) Start() {
	queues := []string{QueueSlideConversion, QueueCheckpointGeneration}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)

		var processErr error
		switch job.Type {
		case models.JobTypeSlideConversion:
			processErr = p.converter.Convert(ctx, job.ReferenceID)
		case models.JobTypeCheckpointGeneration:
			processErr = p.checkpoints.Generate(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusCompleted)

	if job.Type == models.JobTypeSlideConversion {
		deck, err := p.slideRepo.GetDeck(ctx, job.ReferenceID)
		if err != nil {
			log.Printf("Job %s completed but deck %s not found: %v", job.ID, job.ReferenceID, err)
			return
		}

		p.notify(ctx, job.UserID, models.NotifyDeckReady,
			"Slides are ready",
			fmt.Sprintf("%q converted into %d slides.", deck.FileName, deck.SlideCount))

		p.publishToRoom(ctx, deck.SessionID, models.WSMessage{
			Type: "deck_ready",
			Payload: map[string]any{
				"deck_id":     deck.ID,
				"slide_count": deck.SlideCount,
			},
		})
	}

	log.Printf("Job %s completed successfully", job.ID)
}

// handleFailure marks the job failed. Conversion and generation failures
// are not retried automatically; the uploader re-submits after fixing the
// source file.
func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	errMsg := err.Error()
	log.Printf("Job %s failed: %s", job.ID, errMsg)

	p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

	switch job.Type {
	case models.JobTypeSlideConversion:
		p.notify(ctx, job.UserID, models.NotifyDeckFailed,
			"Slide conversion failed", errMsg)
		if deck, getErr := p.slideRepo.GetDeck(ctx, job.ReferenceID); getErr == nil {
			p.publishToRoom(ctx, deck.SessionID, models.WSMessage{
				Type: "deck_failed",
				Payload: map[string]any{
					"deck_id": deck.ID,
					"reason":  errMsg,
				},
			})
		}
	case models.JobTypeCheckpointGeneration:
		p.notify(ctx, job.UserID, models.NotifyDeckFailed,
			"Checkpoint generation failed", errMsg)
	}
}

func (p *Pool) notify(ctx context.Context, userID uuid.UUID, kind, title, body string) {
	n := &models.Notification{UserID: userID, Kind: kind, Title: title, Body: body}
	if err := p.notifRepo.Create(ctx, n); err != nil {
		log.Printf("failed to create notification for user %s: %v", userID, err)
	}
}

func (p *Pool) publishToRoom(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	p.redis.Publish(ctx, "room:"+sessionID.String(), string(data))
}
