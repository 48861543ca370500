// Package devhub is an embedded development push-channel server: it speaks
// the same frame protocol the client connects with, so integration tests and
// the demo daemon can run without a real backend.
package devhub

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

const lastEventTTL = 10 * time.Minute

type client struct {
	conn  *websocket.Conn
	mu    sync.Mutex // serializes writes to conn
	rooms map[string]struct{}
}

func (c *client) write(f types.ServerFrame) error {
	payload, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

// Hub holds connections and broadcasts notifications to room members.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	// Recently broadcast events, for the redeliver endpoint that simulates
	// at-least-once transport semantics.
	recent *ttlworker.Cache[string, types.NotificationEvent]
	lastID string
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		recent:  ttlworker.NewCache[string, types.NotificationEvent](lastEventTTL),
	}
}

// Register adds a connection and sends the handshake frame.
func (h *Hub) Register(conn *websocket.Conn) *client {
	c := &client{conn: conn, rooms: make(map[string]struct{})}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	_ = c.write(types.ServerFrame{Type: types.FrameConnected, ServerInfo: "devhub/1.0"})
	return c
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// ServeFrames reads client frames until the connection drops.
func (h *Hub) ServeFrames(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f types.ClientFrame
		if err := sonic.Unmarshal(data, &f); err != nil {
			tool.DefaultLogger.Debugf("[Devhub] Dropping unreadable frame: %v", err)
			continue
		}
		switch f.Type {
		case types.FrameJoinRoom:
			if f.Room == "" {
				continue
			}
			c.mu.Lock()
			c.rooms[f.Room] = struct{}{}
			c.mu.Unlock()
			_ = c.write(types.ServerFrame{Type: types.FrameRoomJoined, Room: f.Room})
		case types.FrameLeaveRoom:
			c.mu.Lock()
			delete(c.rooms, f.Room)
			c.mu.Unlock()
		case types.FramePing:
			_ = c.write(types.ServerFrame{
				Type:            types.FramePong,
				ID:              f.ID,
				ServerTimestamp: time.Now().UnixMilli(),
			})
		}
	}
}

// Broadcast sends the event to every member of room, or to every connection
// when room is empty. Returns the number of connections written to.
func (h *Hub) Broadcast(room string, event types.NotificationEvent) int {
	h.mu.Lock()
	h.recent.Set(event.ID, event)
	h.lastID = event.ID
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	frame := types.ServerFrame{Type: types.FrameNotification, Room: room, Event: &event}
	sent := 0
	for _, c := range clients {
		if room != "" && !c.inRoom(room) {
			continue
		}
		if err := c.write(frame); err == nil {
			sent++
		}
	}
	return sent
}

// Redeliver re-broadcasts the most recent event verbatim, same id included,
// so a connected client can exercise its deduplication path by hand.
func (h *Hub) Redeliver() (int, bool) {
	h.mu.Lock()
	lastID := h.lastID
	h.mu.Unlock()
	if lastID == "" {
		return 0, false
	}
	event := h.recent.Get(lastID)
	if event.ID == "" {
		return 0, false
	}
	return h.Broadcast("", event), true
}
