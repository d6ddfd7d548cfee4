package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/on4pvc/morse-trainer/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string

	// Buffered channel of outbound frames.
	send chan []byte
}

// Hub tracks the active connections by id and routes events to single
// clients, channels, or everyone. Channel membership itself lives in the
// Registry; the hub only knows how to deliver.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *Registry
}

func NewHub(registry *Registry) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) get(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// sendTo delivers one event to one connection. Delivery is best-effort:
// a client with a full send buffer just misses the frame rather than
// blocking the sender's handler.
func (h *Hub) sendTo(id string, ev model.Event) {
	c := h.get(id)
	if c == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("marshal error", "event", ev.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("send buffer full, dropping frame", "clientId", id, "event", ev.Type)
	}
}

// broadcastAll delivers an event to every connected client.
func (h *Hub) broadcastAll(ev model.Event) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.sendTo(id, ev)
	}
}

// broadcastChannel delivers an event to every member of a channel,
// optionally skipping one connection (the sender, for the one-hop
// fan-out events).
func (h *Hub) broadcastChannel(channelID string, ev model.Event, except string) {
	for _, id := range h.registry.Members(channelID) {
		if id == except {
			continue
		}
		h.sendTo(id, ev)
	}
}

// broadcastDirectory pushes the full channel listing to every client.
func (h *Hub) broadcastDirectory() {
	ev, err := model.NewEvent(model.EventChannelsUpdate, h.registry.Directory())
	if err != nil {
		slog.Warn("marshal error", "event", model.EventChannelsUpdate, "error", err)
		return
	}
	h.broadcastAll(ev)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			break
		}

		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("invalid event", "clientId", c.id, "error", err)
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs upgrades an HTTP request, registers the user, and starts the
// connection's pumps.
func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, 256),
	}
	hub.add(client)

	go client.writePump()
	go client.readPump()

	hub.handleConnect(client)
}
