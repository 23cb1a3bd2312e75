package services

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
)

// YouTubeService backs video sessions: metadata for the session card and
// transcripts as source material for checkpoint generation.
type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
}

func NewYouTubeService() *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
	}
}

// ExtractVideoID pulls the video ID out of the common YouTube URL forms.
func ExtractVideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}

	host := strings.TrimPrefix(u.Host, "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"), nil
			}
		}
	}
	return "", fmt.Errorf("unrecognized YouTube URL")
}

// GetTranscript fetches captions for a video, preferring English tracks.
func (s *YouTubeService) GetTranscript(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Fallback: request any available language
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no subtitles available: %w", err)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}

	return cleaned, nil
}

// GetVideoMetadata returns the title, description, and duration of a video.
func (s *YouTubeService) GetVideoMetadata(videoID string) (title, description string, durationSec int, err error) {
	video, err := s.ytClient.GetVideo("https://www.youtube.com/watch?v=" + videoID)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to fetch video metadata: %w", err)
	}
	return video.Title, video.Description, int(video.Duration.Seconds()), nil
}
