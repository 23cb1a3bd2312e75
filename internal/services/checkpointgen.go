package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

// maxSampledSlides caps how many slide images a single generation prompt
// carries.
const maxSampledSlides = 50

// CheckpointGenService asks Gemini to propose checkpoints for a session,
// either from a converted slide deck or from a video transcript. Results
// land on the deck as suggestions until an instructor saves them.
type CheckpointGenService struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	slideRepo   *repository.SlideRepo
	sessionRepo *repository.SessionRepo
	converter   *ConverterService
	youtube     *YouTubeService
	redis       *redis.Client
	rateChan    chan struct{} // Token bucket
}

func NewCheckpointGenService(
	apiKey string,
	baseURL string,
	concurrentReqs int,
	slideRepo *repository.SlideRepo,
	sessionRepo *repository.SessionRepo,
	converter *ConverterService,
	youtube *YouTubeService,
	redisClient *redis.Client,
) (*CheckpointGenService, error) {
	ctx := context.Background()
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &CheckpointGenService{
		client:      client,
		model:       model,
		slideRepo:   slideRepo,
		sessionRepo: sessionRepo,
		converter:   converter,
		youtube:     youtube,
		redis:       redisClient,
		rateChan:    rateChan,
	}, nil
}

func (s *CheckpointGenService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *CheckpointGenService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *CheckpointGenService) releaseRate() {
	s.rateChan <- struct{}{}
}

// PublishToRoom pushes a WebSocket message to every member of a session
// room via the Redis backplane.
func (s *CheckpointGenService) PublishToRoom(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, "room:"+sessionID.String(), string(data))
}

// Generate runs one checkpoint-generation job: build source material,
// prompt Gemini, validate, store the suggestions, push them to the room.
func (s *CheckpointGenService) Generate(ctx context.Context, job *models.Job) error {
	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	deck, err := s.slideRepo.GetDeck(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("deck %s not found: %w", job.ReferenceID, err)
	}

	var parts []genai.Part
	if deck.ConversionStatus == models.ConversionReady && deck.SlideCount > 0 {
		parts, err = s.slideParts(deck)
	} else {
		parts, err = s.transcriptParts(ctx, deck.SessionID)
	}
	if err != nil {
		return err
	}

	resp, err := s.model.GenerateContent(ctx, parts...)
	if err != nil {
		return fmt.Errorf("Gemini API error: %w", err)
	}

	suggestions, err := parseSuggestions(extractText(resp))
	if err != nil {
		return err
	}

	payload, err := json.Marshal(suggestions)
	if err != nil {
		return err
	}
	if err := s.slideRepo.SetSuggestions(ctx, deck.ID, payload); err != nil {
		return err
	}

	s.PublishToRoom(ctx, deck.SessionID, models.WSMessage{
		Type: "checkpoint_suggestions",
		Payload: map[string]any{
			"deck_id":     deck.ID,
			"suggestions": suggestions,
		},
	})
	return nil
}

func (s *CheckpointGenService) slideParts(deck *models.SlideDeck) ([]genai.Part, error) {
	indexes := sampleIndexes(deck.SlideCount, maxSampledSlides)

	parts := []genai.Part{genai.Text(buildCheckpointPrompt(len(indexes)))}
	for _, i := range indexes {
		img, err := os.ReadFile(s.converter.SlidePath(deck.ID, i))
		if err != nil {
			return nil, fmt.Errorf("slide image %d unreadable: %w", i, err)
		}
		parts = append(parts, genai.ImageData("png", img))
	}
	return parts, nil
}

func (s *CheckpointGenService) transcriptParts(ctx context.Context, sessionID uuid.UUID) ([]genai.Part, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, err
	}
	if session.VideoURL == nil {
		return nil, fmt.Errorf("session has neither a ready deck nor a video")
	}

	videoID, err := ExtractVideoID(*session.VideoURL)
	if err != nil {
		return nil, err
	}

	material, err := s.youtube.GetTranscript(videoID)
	if err != nil {
		// Metadata fallback: title plus description is thin but still
		// enough to segment a lecture.
		log.Printf("transcript unavailable for video %s, falling back to metadata: %v", videoID, err)
		title, description, _, metaErr := s.youtube.GetVideoMetadata(videoID)
		if metaErr != nil {
			return nil, fmt.Errorf("no transcript and no metadata for video: %w", metaErr)
		}
		material = title + "\n\n" + description
	}

	prompt := buildCheckpointPrompt(0) + "\n---SOURCE MATERIAL---\n" + material + "\n---END---\n"
	return []genai.Part{genai.Text(prompt)}, nil
}

// sampleIndexes picks up to max evenly spaced slide indexes out of count.
func sampleIndexes(count, max int) []int {
	if count <= max {
		indexes := make([]int, count)
		for i := range indexes {
			indexes[i] = i
		}
		return indexes
	}
	indexes := make([]int, max)
	for i := 0; i < max; i++ {
		indexes[i] = i * count / max
	}
	return indexes
}

func buildCheckpointPrompt(numSlides int) string {
	var b strings.Builder

	b.WriteString("You are an expert instructional designer. Split the lecture material below into sequential study checkpoints.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString("Generate between 5 and 15 checkpoints. Each checkpoint must cover a coherent topic segment, in the order the material presents it.\n")
	b.WriteString("estimated_minutes must be between 3 and 15.\n")
	if numSlides > 0 {
		b.WriteString(fmt.Sprintf("The material is %d slide images, in presentation order.\n", numSlides))
	}
	b.WriteString(`
JSON schema per checkpoint:
{"seq": int, "title": "string under 80 chars", "description": "one or two sentences", "estimated_minutes": int}
`)
	return b.String()
}

// parseSuggestions decodes and validates Gemini's response. Out-of-range
// estimates are clamped rather than rejected; an unusable payload fails
// the job.
func parseSuggestions(raw string) ([]models.CheckpointSuggestion, error) {
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	type suggestionJSON struct {
		Seq              int    `json:"seq"`
		Title            string `json:"title"`
		Description      string `json:"description"`
		EstimatedMinutes int    `json:"estimated_minutes"`
	}

	var items []suggestionJSON
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// Try to extract JSON array
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start >= 0 && end > start {
			json.Unmarshal([]byte(raw[start:end+1]), &items)
		}
	}

	suggestions := make([]models.CheckpointSuggestion, 0, len(items))
	for _, item := range items {
		if item.Title == "" {
			continue
		}
		minutes := item.EstimatedMinutes
		if minutes < 3 {
			minutes = 3
		}
		if minutes > 15 {
			minutes = 15
		}
		suggestions = append(suggestions, models.CheckpointSuggestion{
			Title:            item.Title,
			Description:      item.Description,
			EstimatedMinutes: minutes,
		})
	}

	if len(suggestions) < 1 {
		return nil, fmt.Errorf("model returned no usable checkpoints")
	}
	if len(suggestions) > 15 {
		suggestions = suggestions[:15]
	}
	return suggestions, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
