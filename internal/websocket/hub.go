package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/middleware"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeFunc delivers every message published for userID until ctx ends.
type subscribeFunc func(ctx context.Context, userID string, deliver func([]byte))

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans per-user pub/sub messages out to that user's open sockets.
type Hub struct {
	auth      *middleware.JWTAuth
	subscribe subscribeFunc
	log       *logger.Logger

	mu          sync.RWMutex
	connections map[string][]*client
	cancelFuncs map[string]context.CancelFunc
	wg          sync.WaitGroup
}

func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth, log *logger.Logger) *Hub {
	log = logger.OrNop(log)
	return newHub(auth, redisSubscriber(redisClient, log), log)
}

func newHub(auth *middleware.JWTAuth, subscribe subscribeFunc, log *logger.Logger) *Hub {
	return &Hub{
		auth:        auth,
		subscribe:   subscribe,
		log:         logger.OrNop(log),
		connections: make(map[string][]*client),
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func redisSubscriber(rdb *redis.Client, log *logger.Logger) subscribeFunc {
	return func(ctx context.Context, userID string, deliver func([]byte)) {
		pubsub := rdb.Subscribe(ctx, Channel(userID))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("pubsub channel closed", "user_id", userID)
					return
				}
				deliver([]byte(msg.Payload))
			}
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request, so the token
	// travels as a query param.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(user.ID, c)

	// Keep connection alive and handle disconnect
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.unregisterConnection(user.ID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.subscribe(ctx, userID, func(data []byte) { h.broadcast(userID, data) })
		}()
	}

	h.log.Debug("websocket connected", "user_id", userID, "connections", len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.log.Debug("websocket disconnected", "user_id", userID)
}

func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", "user_id", userID, "error", err)
		}
	}
}

// SendToUser sends a message directly to a user (for use outside pub/sub)
func (h *Hub) SendToUser(userID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("failed to encode websocket message", "user_id", userID, "error", err)
		return
	}
	h.broadcast(userID, data)
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every socket and waits for the hub's goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, clients := range h.connections {
		for _, c := range clients {
			c.conn.Close()
		}
	}
	for _, cancel := range h.cancelFuncs {
		cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}
