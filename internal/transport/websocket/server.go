package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the admin panel origin once it has a fixed host.
		return true
	},
}

// Hub fans messages out to the websocket connections of each admin.
type Hub struct {
	connections map[string]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection

	broadcast chan *Message

	mu sync.RWMutex
}

type Connection struct {
	ws      *websocket.Conn
	adminID string
	send    chan *Message
	hub     *Hub
}

type Message struct {
	AdminID string `json:"admin_id,omitempty"`
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data"`

	all bool
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *Message, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			var conns []*Connection
			for _, m := range h.connections {
				for c := range m {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			// Closed outside the lock: the pumps unregister themselves.
			for _, c := range conns {
				_ = c.ws.Close()
			}

			return
		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.adminID] == nil {
				h.connections[conn.adminID] = make(map[*Connection]bool)
			}
			h.connections[conn.adminID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			h.drop(conn)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			if message.all {
				for _, connections := range h.connections {
					h.deliver(connections, message)
				}
			} else if connections, ok := h.connections[message.AdminID]; ok {
				h.deliver(connections, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver must be called with mu held; slow consumers are dropped.
func (h *Hub) deliver(connections map[*Connection]bool, message *Message) {
	for conn := range connections {
		select {
		case conn.send <- message:
		default:
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *Connection) {
	connections, ok := h.connections[conn.adminID]
	if !ok {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.send)
	if len(connections) == 0 {
		delete(h.connections, conn.adminID)
	}
}

// Broadcast queues a message for every connection of one admin.
func (h *Hub) Broadcast(adminID string, message *Message) {
	message.AdminID = adminID
	h.enqueue(message)
}

// BroadcastAll queues a message for every connected admin.
func (h *Hub) BroadcastAll(message *Message) {
	message.AdminID = ""
	message.all = true
	h.enqueue(message)
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WS] broadcast channel is full, dropping %s message for admin %q", message.Type, message.AdminID)
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, adminID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ws:      ws,
		adminID: adminID,
		send:    make(chan *Message, 256),
		hub:     h,
	}

	h.register <- conn

	go conn.writePump()
	go conn.readPump()
}

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10
)

func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error for admin %s: %v", c.adminID, err)
			}
			break
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteJSON(message); err != nil {
				log.Printf("[WS] write error for admin %s: %v", c.adminID, err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
