package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendQueueDepth = 64
)

// Client events.
const (
	eventAuthenticate  = "authenticate"
	eventAuthenticated = "authenticated"
	eventJoinTask      = "join_task"
	eventLeaveTask     = "leave_task"
	eventJoined        = "joined_task"
	eventError         = "error"
)

// TaskAccess decides who may join a task room.
type TaskAccess interface {
	IsParticipant(ctx context.Context, taskID, userID uint) (bool, error)
}

// Authenticator resolves a bearer token to a user id.
type Authenticator func(token string) (uint, error)

type inbound struct {
	Event  string `json:"event"`
	Token  string `json:"token,omitempty"`
	TaskID uint   `json:"taskId,omitempty"`
}

// Client is one websocket connection. userID is zero until the connection
// authenticates.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
	rooms  map[uint]struct{}

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendQueueDepth),
		rooms: make(map[uint]struct{}),
	}
}

func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		zap.L().Debug("realtime: queue full, dropping event", zap.Uint("user_id", c.userID))
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) reply(event string, data interface{}) {
	if frame, ok := encode(event, data); ok {
		c.enqueue(frame)
	}
}

// Handler upgrades HTTP requests on the websocket route.
type Handler struct {
	hub          *Hub
	access       TaskAccess
	authenticate Authenticator
	upgrader     websocket.Upgrader
}

// NewHandler builds the websocket endpoint. allowedOrigins empty accepts any
// origin.
func NewHandler(hub *Hub, access TaskAccess, authenticate Authenticator, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Handler{
		hub:          hub,
		access:       access,
		authenticate: authenticate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("realtime: upgrade failed", zap.Error(err))
		return
	}
	c := newClient(h.hub, conn)
	go c.writePump()

	if token := r.URL.Query().Get("token"); token != "" {
		h.login(c, token)
	}
	h.readPump(c)
}

func (h *Handler) login(c *Client, token string) {
	if c.userID != 0 {
		c.reply(eventError, "already authenticated")
		return
	}
	userID, err := h.authenticate(token)
	if err != nil || userID == 0 {
		c.reply(eventError, "authentication failed")
		return
	}
	c.userID = userID
	h.hub.register(c)
	c.reply(eventAuthenticated, map[string]uint{"userId": userID})
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("realtime: read failed", zap.Uint("user_id", c.userID), zap.Error(err))
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(eventError, "invalid frame")
			continue
		}
		h.handle(c, msg)
	}
}

func (h *Handler) handle(c *Client, msg inbound) {
	if msg.Event == eventAuthenticate {
		h.login(c, msg.Token)
		return
	}
	if c.userID == 0 {
		c.reply(eventError, "not authenticated")
		return
	}

	switch msg.Event {
	case eventJoinTask:
		ok, err := h.access.IsParticipant(context.Background(), msg.TaskID, c.userID)
		if err != nil || !ok {
			c.reply(eventError, "cannot join task")
			return
		}
		h.hub.join(c, msg.TaskID)
		c.reply(eventJoined, map[string]uint{"taskId": msg.TaskID})
	case eventLeaveTask:
		h.hub.leave(c, msg.TaskID)
	default:
		c.reply(eventError, "unknown event")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
