package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type stubSessions struct {
	session  *models.Session
	enrolled map[uuid.UUID]bool
}

func (s *stubSessions) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if s.session == nil || s.session.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.session, nil
}

func (s *stubSessions) IsEnrolled(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	return s.enrolled[userID], nil
}

type stubUsers struct{}

func (stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, FullName: "Test User"}, nil
}

type stubChat struct{ created int }

func (s *stubChat) Create(_ context.Context, m *models.ChatMessage) error {
	s.created++
	m.ID = uuid.New()
	return nil
}

func (s *stubChat) Edit(_ context.Context, _, _ uuid.UUID, _ string, _ bool) (bool, error) {
	return false, nil
}

func (s *stubChat) SoftDelete(_ context.Context, _, _ uuid.UUID, _ bool) (bool, error) {
	return false, nil
}

type stubSlides struct {
	deck     *models.SlideDeck
	setSlide int
}

func (s *stubSlides) GetLatestDeckForSession(_ context.Context, _ uuid.UUID) (*models.SlideDeck, error) {
	if s.deck == nil {
		return nil, pgx.ErrNoRows
	}
	return s.deck, nil
}

func (s *stubSlides) SetCurrentSlide(_ context.Context, _ uuid.UUID, index int) error {
	s.setSlide = index
	return nil
}

func (s *stubSlides) SetReaction(_ context.Context, _, _ uuid.UUID, _ int, _ string) error {
	return nil
}

func (s *stubSlides) TallyReactions(_ context.Context, _ uuid.UUID, slideIndex int) (models.ReactionTally, error) {
	return models.ReactionTally{SlideIndex: slideIndex}, nil
}

func (s *stubSlides) GetBookmark(_ context.Context, _ uuid.UUID, _ int) (*models.SlideBookmark, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubSlides) SetAutoFlag(_ context.Context, _ uuid.UUID, _ int, _ bool, _ string) error {
	return nil
}

func (s *stubSlides) SetManualBookmark(_ context.Context, _ uuid.UUID, _ int, _ bool, _, _ string) error {
	return nil
}

type stubLive struct{ class *models.LiveClass }

func (s *stubLive) GetLatestForSession(_ context.Context, _ uuid.UUID) (*models.LiveClass, error) {
	if s.class == nil {
		return nil, pgx.ErrNoRows
	}
	return s.class, nil
}

type stubProgress struct{ stats []repository.CheckpointStat }

func (s *stubProgress) Complete(_ context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error) {
	return &models.Progress{UserID: userID, CheckpointID: checkpointID, Mode: mode}, nil
}

func (s *stubProgress) SessionStats(_ context.Context, _ uuid.UUID, _ string) ([]repository.CheckpointStat, error) {
	return s.stats, nil
}

type stubLiveCtl struct{}

func (stubLiveCtl) SetCurrentCheckpoint(_ context.Context, _, _ uuid.UUID, _ *uuid.UUID) error {
	return nil
}

type routerFixture struct {
	router    *EventRouter
	sessions  *stubSessions
	live      *stubLive
	slides    *stubSlides
	sessionID uuid.UUID
	owner     uuid.UUID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	sessionID := uuid.New()
	ownerID := uuid.New()

	sessions := &stubSessions{
		session:  &models.Session{ID: sessionID, InstructorID: ownerID, SessionType: models.SessionTypeLive},
		enrolled: make(map[uuid.UUID]bool),
	}
	live := &stubLive{class: &models.LiveClass{SessionID: sessionID, LiveStatus: models.LiveStatusLive}}
	slides := &stubSlides{deck: &models.SlideDeck{ID: uuid.New(), SessionID: sessionID, SlideCount: 10}}

	router := NewEventRouter(sessions, stubUsers{}, &stubChat{}, slides, live, &stubProgress{}, stubLiveCtl{})
	return &routerFixture{
		router:    router,
		sessions:  sessions,
		live:      live,
		slides:    slides,
		sessionID: sessionID,
		owner:     ownerID,
	}
}

func testClient(role string) *Client {
	return newClient(NewHub(nil, nil), nil, uuid.New(), role)
}

// recv pops the next queued frame for the client, failing if none is there.
func recv(t *testing.T, c *Client) models.WSMessage {
	t.Helper()

	select {
	case data := <-c.send:
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return models.WSMessage{Type: msg.Type, Payload: msg.Payload}
	default:
		t.Fatalf("expected a queued frame for the client")
		return models.WSMessage{}
	}
}

func errMessage(t *testing.T, msg models.WSMessage) string {
	t.Helper()

	if msg.Type != "error" {
		t.Fatalf("expected error frame, got %q", msg.Type)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("unexpected error payload %T", msg.Payload)
	}
	text, _ := payload["message"].(string)
	return text
}

func envelope(t *testing.T, eventType string, sessionID uuid.UUID, payload any) Envelope {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return Envelope{Type: eventType, SessionID: sessionID, Payload: data}
}

func TestDispatchUnknownEvent(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)

	f.router.Dispatch(context.Background(), c, envelope(t, "warp_drive", f.sessionID, nil))

	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "unknown event") {
		t.Fatalf("expected unknown event error, got %q", got)
	}
}

func TestChatMessageRequiresMembership(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)

	f.router.Dispatch(context.Background(), c,
		envelope(t, "chat_message", f.sessionID, map[string]string{"body": "hi"}))

	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "not enrolled") {
		t.Fatalf("expected enrollment rejection, got %q", got)
	}
}

func TestChatMessageRequiresRunningClass(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	f.sessions.enrolled[c.UserID] = true
	f.live.class.LiveStatus = models.LiveStatusEnded

	f.router.Dispatch(context.Background(), c,
		envelope(t, "chat_message", f.sessionID, map[string]string{"body": "hi"}))

	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "not live") {
		t.Fatalf("expected not-live rejection, got %q", got)
	}
}

func TestChatMessageRejectsEmptyAndOversizedBodies(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	f.sessions.enrolled[c.UserID] = true

	f.router.Dispatch(context.Background(), c,
		envelope(t, "chat_message", f.sessionID, map[string]string{"body": ""}))
	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "required") {
		t.Fatalf("expected empty body rejection, got %q", got)
	}

	f.router.Dispatch(context.Background(), c,
		envelope(t, "chat_message", f.sessionID, map[string]string{"body": strings.Repeat("a", 2001)}))
	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "too long") {
		t.Fatalf("expected oversized body rejection, got %q", got)
	}
}

func TestSlideChangedIsInstructorOnly(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	f.sessions.enrolled[c.UserID] = true

	f.router.Dispatch(context.Background(), c,
		envelope(t, "slide_changed", f.sessionID, map[string]int{"slide_index": 2}))

	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "instructor") {
		t.Fatalf("expected instructor-only rejection, got %q", got)
	}
}

func TestSlideChangedRejectsOutOfRangeIndex(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	c.UserID = f.owner

	for _, index := range []int{-1, 10} {
		f.router.Dispatch(context.Background(), c,
			envelope(t, "slide_changed", f.sessionID, map[string]int{"slide_index": index}))
		if got := errMessage(t, recv(t, c)); !strings.Contains(got, "out of range") {
			t.Fatalf("expected out-of-range rejection for index %d, got %q", index, got)
		}
	}
}

func TestSetSlideReactionRejectsUnknownReaction(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	f.sessions.enrolled[c.UserID] = true

	f.router.Dispatch(context.Background(), c,
		envelope(t, "set_slide_reaction", f.sessionID,
			map[string]any{"slide_index": 1, "reaction": "confetti"}))

	if got := errMessage(t, recv(t, c)); !strings.Contains(got, "unknown reaction") {
		t.Fatalf("expected unknown reaction rejection, got %q", got)
	}
}

func TestRequestStatsRepliesToRequesterOnly(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleStudent)
	f.sessions.enrolled[c.UserID] = true

	f.router.Dispatch(context.Background(), c, envelope(t, "request_stats", f.sessionID, nil))

	msg := recv(t, c)
	if msg.Type != "session_stats" {
		t.Fatalf("expected session_stats frame, got %q", msg.Type)
	}
}

func TestAdminBypassesEnrollmentCheck(t *testing.T) {
	f := newRouterFixture(t)
	c := testClient(models.RoleAdmin)

	f.router.Dispatch(context.Background(), c, envelope(t, "request_stats", f.sessionID, nil))

	if msg := recv(t, c); msg.Type != "session_stats" {
		t.Fatalf("expected admin to pass the membership guard, got %q frame", msg.Type)
	}
}
