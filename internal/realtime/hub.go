package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"aula-backend/internal/middleware"
	"aula-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub keeps the session rooms of this process. Membership is local;
// broadcasts go through a Redis channel per room so every instance with
// members in that room fans out to its own connections.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[uuid.UUID]map[*Client]bool
	cancelFuncs map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	jwt         *middleware.JWTAuth
	router      *EventRouter
}

func NewHub(redisClient *redis.Client, jwt *middleware.JWTAuth) *Hub {
	return &Hub{
		rooms:       make(map[uuid.UUID]map[*Client]bool),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		jwt:         jwt,
	}
}

// SetRouter wires the inbound event dispatcher. Separate from NewHub
// because the router's services need the hub for broadcasting.
func (h *Hub) SetRouter(router *EventRouter) {
	h.router = router
}

// HandleWebSocket upgrades the connection. Auth rides on a query token
// because browsers cannot set headers on a WebSocket dial.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, role, err := h.jwt.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn, userID, role)
	log.Printf("WebSocket connected: user %s", userID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) joinRoom(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[sessionID] = room

		// First local member: open the backplane subscription.
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeRoom(ctx, sessionID)
	}
	room[c] = true
}

func (h *Hub) leaveRoom(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID, c)
}

func (h *Hub) removeLocked(sessionID uuid.UUID, c *Client) {
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}
}

// dropClient removes the client from every room it joined.
func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID := range c.rooms {
		h.removeLocked(sessionID, c)
	}
}

// RoomSize reports the number of local members in a room.
func (h *Hub) RoomSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) subscribeRoom(ctx context.Context, sessionID uuid.UUID) {
	channel := "room:" + sessionID.String()
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.fanout(sessionID, []byte(msg.Payload))
		}
	}
}

// fanout delivers raw bytes to every local member of a room.
func (h *Hub) fanout(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[sessionID] {
		select {
		case c.send <- data:
		default:
			// Slow consumer; the write pump closes the connection.
		}
	}
}

// Broadcast publishes a message to a room through the Redis backplane.
func (h *Hub) Broadcast(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.redisClient.Publish(ctx, "room:"+sessionID.String(), string(data)).Err(); err != nil {
		log.Printf("room broadcast failed for %s: %v", sessionID, err)
	}
}

// handleInbound routes one decoded client envelope.
func (h *Hub) handleInbound(ctx context.Context, c *Client, env Envelope) {
	if h.router == nil {
		return
	}
	h.router.Dispatch(ctx, c, env)
}
