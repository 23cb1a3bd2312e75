package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"aula-backend/internal/models"
	"aula-backend/internal/repository"
)

type sessionAccess interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	IsEnrolled(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type chatStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	Edit(ctx context.Context, id, userID uuid.UUID, body string, isModerator bool) (bool, error)
	SoftDelete(ctx context.Context, id, userID uuid.UUID, isModerator bool) (bool, error)
}

type slideStore interface {
	GetLatestDeckForSession(ctx context.Context, sessionID uuid.UUID) (*models.SlideDeck, error)
	SetCurrentSlide(ctx context.Context, id uuid.UUID, index int) error
	SetReaction(ctx context.Context, deckID, userID uuid.UUID, slideIndex int, reaction string) error
	TallyReactions(ctx context.Context, deckID uuid.UUID, slideIndex int) (models.ReactionTally, error)
	GetBookmark(ctx context.Context, deckID uuid.UUID, slideIndex int) (*models.SlideBookmark, error)
	SetAutoFlag(ctx context.Context, deckID uuid.UUID, slideIndex int, flagged bool, reason string) error
	SetManualBookmark(ctx context.Context, deckID uuid.UUID, slideIndex int, on bool, memo, supplementURL string) error
}

type liveReader interface {
	GetLatestForSession(ctx context.Context, sessionID uuid.UUID) (*models.LiveClass, error)
}

type progressOps interface {
	Complete(ctx context.Context, userID, checkpointID uuid.UUID, mode string) (*models.Progress, error)
	SessionStats(ctx context.Context, sessionID uuid.UUID, mode string) ([]repository.CheckpointStat, error)
}

type checkpointSetter interface {
	SetCurrentCheckpoint(ctx context.Context, sessionID, userID uuid.UUID, checkpointID *uuid.UUID) error
}

// EventRouter dispatches inbound client events. Guards run here; the
// services and repos behind it never trust the socket.
type EventRouter struct {
	sessions sessionAccess
	users    userReader
	chat     chatStore
	slides   slideStore
	live     liveReader
	progress progressOps
	liveCtl  checkpointSetter
}

func NewEventRouter(
	sessions sessionAccess,
	users userReader,
	chat chatStore,
	slides slideStore,
	live liveReader,
	progress progressOps,
	liveCtl checkpointSetter,
) *EventRouter {
	return &EventRouter{
		sessions: sessions,
		users:    users,
		chat:     chat,
		slides:   slides,
		live:     live,
		progress: progress,
		liveCtl:  liveCtl,
	}
}

func (r *EventRouter) Dispatch(ctx context.Context, c *Client, env Envelope) {
	var err error
	switch env.Type {
	case "join_session":
		err = r.joinSession(ctx, c, env)
	case "leave_session":
		err = r.leaveSession(ctx, c, env)
	case "chat_message":
		err = r.chatMessage(ctx, c, env)
	case "chat_edit":
		err = r.chatEdit(ctx, c, env)
	case "chat_delete":
		err = r.chatDelete(ctx, c, env)
	case "slide_changed":
		err = r.slideChanged(ctx, c, env)
	case "set_slide_reaction":
		err = r.setSlideReaction(ctx, c, env)
	case "toggle_slide_bookmark":
		err = r.toggleSlideBookmark(ctx, c, env)
	case "checkpoint_completed":
		err = r.checkpointCompleted(ctx, c, env)
	case "set_current_checkpoint":
		err = r.setCurrentCheckpoint(ctx, c, env)
	case "request_stats":
		err = r.requestStats(ctx, c, env)
	default:
		err = fmt.Errorf("unknown event type %q", env.Type)
	}

	if err != nil {
		c.Send(models.WSMessage{Type: "error", Payload: map[string]string{
			"event":   env.Type,
			"message": err.Error(),
		}})
	}
}

// isStaff reports whether the client may moderate the session: its owning
// instructor, or any admin.
func (r *EventRouter) isStaff(c *Client, session *models.Session) bool {
	if c.Role == models.RoleAdmin {
		return true
	}
	return session.InstructorID == c.UserID
}

// memberSession loads the session and checks the client belongs in its
// room (enrolled, or staff).
func (r *EventRouter) memberSession(ctx context.Context, c *Client, sessionID uuid.UUID) (*models.Session, error) {
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found")
	}
	if r.isStaff(c, session) {
		return session, nil
	}
	enrolled, err := r.sessions.IsEnrolled(ctx, sessionID, c.UserID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, fmt.Errorf("not enrolled in this session")
	}
	return session, nil
}

// liveClassRunning requires the session's latest live class to be live.
func (r *EventRouter) liveClassRunning(ctx context.Context, sessionID uuid.UUID) (*models.LiveClass, error) {
	lc, err := r.live.GetLatestForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("no live class for this session")
	}
	if lc.LiveStatus != models.LiveStatusLive {
		return nil, fmt.Errorf("class is not live")
	}
	return lc, nil
}

func (r *EventRouter) joinSession(ctx context.Context, c *Client, env Envelope) error {
	if _, err := r.memberSession(ctx, c, env.SessionID); err != nil {
		return err
	}

	c.hub.joinRoom(env.SessionID, c)
	c.rooms[env.SessionID] = true

	user, err := r.users.GetByID(ctx, c.UserID)
	name := ""
	if err == nil {
		name = user.FullName
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "member_joined",
		Payload: map[string]any{
			"session_id": env.SessionID,
			"user_id":    c.UserID,
			"name":       name,
		},
	})
	return r.sendStats(ctx, c, env.SessionID)
}

func (r *EventRouter) leaveSession(ctx context.Context, c *Client, env Envelope) error {
	if !c.rooms[env.SessionID] {
		return nil
	}
	c.hub.leaveRoom(env.SessionID, c)
	delete(c.rooms, env.SessionID)

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "member_left",
		Payload: map[string]any{
			"session_id": env.SessionID,
			"user_id":    c.UserID,
		},
	})
	return nil
}

func (r *EventRouter) chatMessage(ctx context.Context, c *Client, env Envelope) error {
	session, err := r.memberSession(ctx, c, env.SessionID)
	if err != nil {
		return err
	}
	if _, err := r.liveClassRunning(ctx, env.SessionID); err != nil {
		return err
	}

	var payload struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.Body == "" {
		return fmt.Errorf("message body is required")
	}
	if len(payload.Body) > 2000 {
		return fmt.Errorf("message too long")
	}

	msg := &models.ChatMessage{SessionID: session.ID, UserID: c.UserID, Body: payload.Body}
	if err := r.chat.Create(ctx, msg); err != nil {
		return fmt.Errorf("could not save message")
	}

	name := ""
	if user, err := r.users.GetByID(ctx, c.UserID); err == nil {
		name = user.FullName
		if user.Nickname != nil && *user.Nickname != "" {
			name = *user.Nickname
		}
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "chat_message",
		Payload: models.ChatMessageView{
			ChatMessage: *msg,
			SenderName:  name,
		},
	})
	return nil
}

func (r *EventRouter) chatEdit(ctx context.Context, c *Client, env Envelope) error {
	session, err := r.memberSession(ctx, c, env.SessionID)
	if err != nil {
		return err
	}

	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
		Body      string    `json:"body"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.Body == "" {
		return fmt.Errorf("message_id and body are required")
	}

	ok, err := r.chat.Edit(ctx, payload.MessageID, c.UserID, payload.Body, r.isStaff(c, session))
	if err != nil {
		return fmt.Errorf("could not edit message")
	}
	if !ok {
		return fmt.Errorf("message not found or not yours")
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "chat_edited",
		Payload: map[string]any{
			"message_id": payload.MessageID,
			"body":       payload.Body,
		},
	})
	return nil
}

func (r *EventRouter) chatDelete(ctx context.Context, c *Client, env Envelope) error {
	session, err := r.memberSession(ctx, c, env.SessionID)
	if err != nil {
		return err
	}

	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("message_id is required")
	}

	ok, err := r.chat.SoftDelete(ctx, payload.MessageID, c.UserID, r.isStaff(c, session))
	if err != nil {
		return fmt.Errorf("could not delete message")
	}
	if !ok {
		return fmt.Errorf("message not found or not yours")
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type:    "chat_deleted",
		Payload: map[string]any{"message_id": payload.MessageID},
	})
	return nil
}

func (r *EventRouter) slideChanged(ctx context.Context, c *Client, env Envelope) error {
	session, err := r.memberSession(ctx, c, env.SessionID)
	if err != nil {
		return err
	}
	if !r.isStaff(c, session) {
		return fmt.Errorf("only the instructor may change slides")
	}
	if _, err := r.liveClassRunning(ctx, env.SessionID); err != nil {
		return err
	}

	var payload struct {
		SlideIndex int `json:"slide_index"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("slide_index is required")
	}

	deck, err := r.slides.GetLatestDeckForSession(ctx, env.SessionID)
	if err != nil {
		return fmt.Errorf("session has no slide deck")
	}
	if payload.SlideIndex < 0 || payload.SlideIndex >= deck.SlideCount {
		return fmt.Errorf("slide index out of range")
	}

	if err := r.slides.SetCurrentSlide(ctx, deck.ID, payload.SlideIndex); err != nil {
		return fmt.Errorf("could not update slide")
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "slide_changed",
		Payload: map[string]any{
			"deck_id":     deck.ID,
			"slide_index": payload.SlideIndex,
		},
	})
	return nil
}

func (r *EventRouter) setSlideReaction(ctx context.Context, c *Client, env Envelope) error {
	if _, err := r.memberSession(ctx, c, env.SessionID); err != nil {
		return err
	}
	if _, err := r.liveClassRunning(ctx, env.SessionID); err != nil {
		return err
	}

	var payload struct {
		SlideIndex int    `json:"slide_index"`
		Reaction   string `json:"reaction"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("slide_index and reaction are required")
	}
	if !models.ValidReaction(payload.Reaction) {
		return fmt.Errorf("unknown reaction %q", payload.Reaction)
	}

	deck, err := r.slides.GetLatestDeckForSession(ctx, env.SessionID)
	if err != nil {
		return fmt.Errorf("session has no slide deck")
	}
	if payload.SlideIndex < 0 || payload.SlideIndex >= deck.SlideCount {
		return fmt.Errorf("slide index out of range")
	}

	if err := r.slides.SetReaction(ctx, deck.ID, c.UserID, payload.SlideIndex, payload.Reaction); err != nil {
		return fmt.Errorf("could not save reaction")
	}

	tally, err := r.slides.TallyReactions(ctx, deck.ID, payload.SlideIndex)
	if err != nil {
		return fmt.Errorf("could not read reaction counts")
	}

	flagged, err := r.applyAutoFlag(ctx, deck, tally)
	if err != nil {
		log.Printf("auto-flag update failed for deck %s slide %d: %v", deck.ID, payload.SlideIndex, err)
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "slide_aggregate_updated",
		Payload: map[string]any{
			"deck_id": deck.ID,
			"tally":   tally,
			"flagged": flagged,
		},
	})
	return nil
}

// applyAutoFlag keeps the auto bookmark in sync with the aggregate: raised
// when the slide crosses the deck's thresholds, dropped when it falls back
// under them. Manual bookmarks survive either way.
func (r *EventRouter) applyAutoFlag(ctx context.Context, deck *models.SlideDeck, tally models.ReactionTally) (bool, error) {
	flagged := tally.ShouldFlag(deck.FlagThresholdCount, deck.FlagThresholdRate)
	reason := ""
	if flagged {
		reason = fmt.Sprintf("%d of %d reactions report trouble", tally.ProblemCount(), tally.Total())
	}
	if err := r.slides.SetAutoFlag(ctx, deck.ID, tally.SlideIndex, flagged, reason); err != nil {
		return flagged, err
	}
	return flagged, nil
}

func (r *EventRouter) toggleSlideBookmark(ctx context.Context, c *Client, env Envelope) error {
	session, err := r.memberSession(ctx, c, env.SessionID)
	if err != nil {
		return err
	}
	if !r.isStaff(c, session) {
		return fmt.Errorf("only the instructor may bookmark slides")
	}

	var payload struct {
		SlideIndex    int    `json:"slide_index"`
		On            bool   `json:"on"`
		Memo          string `json:"memo"`
		SupplementURL string `json:"supplement_url"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("slide_index is required")
	}

	deck, err := r.slides.GetLatestDeckForSession(ctx, env.SessionID)
	if err != nil {
		return fmt.Errorf("session has no slide deck")
	}

	if err := r.slides.SetManualBookmark(ctx, deck.ID, payload.SlideIndex, payload.On, payload.Memo, payload.SupplementURL); err != nil {
		return fmt.Errorf("could not update bookmark")
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "bookmark_updated",
		Payload: map[string]any{
			"deck_id":     deck.ID,
			"slide_index": payload.SlideIndex,
			"manual":      payload.On,
		},
	})
	return nil
}

func (r *EventRouter) checkpointCompleted(ctx context.Context, c *Client, env Envelope) error {
	if _, err := r.memberSession(ctx, c, env.SessionID); err != nil {
		return err
	}

	var payload struct {
		CheckpointID uuid.UUID `json:"checkpoint_id"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("checkpoint_id is required")
	}

	p, err := r.progress.Complete(ctx, c.UserID, payload.CheckpointID, models.ProgressModeLive)
	if err != nil {
		return fmt.Errorf("could not complete checkpoint")
	}

	c.hub.Broadcast(ctx, env.SessionID, models.WSMessage{
		Type: "progress_update",
		Payload: map[string]any{
			"user_id":       c.UserID,
			"checkpoint_id": payload.CheckpointID,
			"completed_at":  p.CompletedAt,
		},
	})
	return r.broadcastStats(ctx, c.hub, env.SessionID)
}

func (r *EventRouter) setCurrentCheckpoint(ctx context.Context, c *Client, env Envelope) error {
	var payload struct {
		CheckpointID *uuid.UUID `json:"checkpoint_id"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("checkpoint_id is required")
	}

	// LiveService re-checks ownership and broadcasts on success.
	if err := r.liveCtl.SetCurrentCheckpoint(ctx, env.SessionID, c.UserID, payload.CheckpointID); err != nil {
		return err
	}
	return nil
}

func (r *EventRouter) requestStats(ctx context.Context, c *Client, env Envelope) error {
	if _, err := r.memberSession(ctx, c, env.SessionID); err != nil {
		return err
	}
	return r.sendStats(ctx, c, env.SessionID)
}

func (r *EventRouter) sendStats(ctx context.Context, c *Client, sessionID uuid.UUID) error {
	stats, err := r.progress.SessionStats(ctx, sessionID, models.ProgressModeLive)
	if err != nil {
		return fmt.Errorf("could not read session stats")
	}
	c.Send(models.WSMessage{Type: "session_stats", Payload: map[string]any{
		"session_id":  sessionID,
		"checkpoints": stats,
		"room_size":   c.hub.RoomSize(sessionID),
	}})
	return nil
}

func (r *EventRouter) broadcastStats(ctx context.Context, hub *Hub, sessionID uuid.UUID) error {
	stats, err := r.progress.SessionStats(ctx, sessionID, models.ProgressModeLive)
	if err != nil {
		return nil
	}
	hub.Broadcast(ctx, sessionID, models.WSMessage{Type: "session_stats", Payload: map[string]any{
		"session_id":  sessionID,
		"checkpoints": stats,
	}})
	return nil
}
