package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"adaptive-backend/internal/cache"
	"adaptive-backend/internal/logger"
	"adaptive-backend/internal/models"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseToken(tokenStr string) (studentID, role string, err error)
}

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks live connections per student. With a Redis client it subscribes to each
// connected student's updates channel, so pushes from any instance are delivered.
// Without one, Publish delivers directly to this instance's connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	cancelFuncs map[string]context.CancelFunc
	redisClient *redis.Client
	auth        tokenParser
	log         *logger.Logger
}

func NewHub(redisClient *redis.Client, auth tokenParser, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		connections: make(map[string][]*client),
		cancelFuncs: make(map[string]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		log:         log,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request, so the token travels in the query.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	studentID, _, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(studentID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(studentID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(studentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[studentID] = append(h.connections[studentID], c)

	if h.redisClient != nil && len(h.connections[studentID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[studentID] = cancel
		go h.subscribeToPubSub(ctx, studentID)
	}

	h.log.Debug("WebSocket connected", "student_id", studentID, "total", len(h.connections[studentID]))
}

func (h *Hub) unregisterConnection(studentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[studentID]
	for i, existing := range conns {
		if existing == c {
			h.connections[studentID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[studentID]) == 0 {
		delete(h.connections, studentID)
		if cancel, ok := h.cancelFuncs[studentID]; ok {
			cancel()
			delete(h.cancelFuncs, studentID)
		}
	}

	h.log.Debug("WebSocket disconnected", "student_id", studentID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, studentID string) {
	pubsub := h.redisClient.Subscribe(ctx, cache.UpdatesChannel(studentID))
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
			h.broadcast(studentID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(studentID string, data []byte) int {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[studentID]...)
	h.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("WebSocket write failed", "student_id", studentID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Publish delivers msg to the student's connections on this instance.
func (h *Hub) Publish(ctx context.Context, studentID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.broadcast(studentID, data)
	return nil
}

// Connections reports how many sockets the student has open on this instance.
func (h *Hub) Connections(studentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[studentID])
}
