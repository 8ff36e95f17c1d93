package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Envelope is the frame format for server-pushed events.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type clientSet map[*Client]struct{}

// Hub tracks live connections by user and by task room. Delivery never
// blocks: a connection whose queue is full misses the event.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]clientSet
	tasks map[uint]clientSet
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[uint]clientSet),
		tasks: make(map[uint]clientSet),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	add(h.users, c.userID, c)
}

func (h *Hub) join(c *Client, taskID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	add(h.tasks, taskID, c)
	c.rooms[taskID] = struct{}{}
}

func (h *Hub) leave(c *Client, taskID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remove(h.tasks, taskID, c)
	delete(c.rooms, taskID)
}

// unregister drops every membership of c and closes its queue.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.userID != 0 {
		remove(h.users, c.userID, c)
	}
	for taskID := range c.rooms {
		remove(h.tasks, taskID, c)
	}
	c.rooms = map[uint]struct{}{}
	c.closeSend()
}

// NotifyUser pushes event to every connection of userID on this instance.
func (h *Hub) NotifyUser(userID uint, event string, data interface{}) {
	frame, ok := encode(event, data)
	if !ok {
		return
	}
	h.deliverUser(userID, frame)
}

// BroadcastTask pushes event to everyone in the task room except the
// connections of exceptUserID.
func (h *Hub) BroadcastTask(taskID uint, event string, data interface{}, exceptUserID uint) {
	frame, ok := encode(event, data)
	if !ok {
		return
	}
	h.deliverTask(taskID, frame, exceptUserID)
}

func (h *Hub) deliverUser(userID uint, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.enqueue(frame)
	}
}

func (h *Hub) deliverTask(taskID uint, frame []byte, exceptUserID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tasks[taskID] {
		if exceptUserID != 0 && c.userID == exceptUserID {
			continue
		}
		c.enqueue(frame)
	}
}

// Connections reports how many connections userID has open.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func encode(event string, data interface{}) ([]byte, bool) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		zap.L().Error("realtime: encode event", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return frame, true
}

func add(m map[uint]clientSet, key uint, c *Client) {
	set, ok := m[key]
	if !ok {
		set = make(clientSet)
		m[key] = set
	}
	set[c] = struct{}{}
}

func remove(m map[uint]clientSet, key uint, c *Client) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m, key)
	}
}
