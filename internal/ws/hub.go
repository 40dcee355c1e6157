package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event types pushed to dashboard clients.
const (
	EventQRUpdate          = "qr_update"
	EventNotification      = "notification"
	EventBulkSendCompleted = "bulk_send_completed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is served from another origin
	},
}

// Client represents a connected dashboard browser tab.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out store-change events (QR images, notifications, bulk send
// completion) to every connected dashboard client. It is the push half of
// the dual push+poll delivery; clients that cannot hold a websocket open
// fall back to the polling endpoints.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	log        zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Msg("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Msg("websocket client unregistered")
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) BroadcastEvent(eventType string, data any) {
	payload, err := json.Marshal(event{Type: eventType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("event", eventType).Msg("marshal ws event")
		return
	}
	h.broadcast <- payload
}

// NotifyQRUpdate pushes a fresh pairing image to connected clients.
func (h *Hub) NotifyQRUpdate(instanceName, qrBase64 string) {
	h.BroadcastEvent(EventQRUpdate, map[string]string{
		"instance_name": instanceName,
		"qr_base64":     qrBase64,
	})
}

// NotifyNotification pushes a stored notification row.
func (h *Hub) NotifyNotification(n any) {
	h.BroadcastEvent(EventNotification, n)
}

// NotifyBulkSendCompleted signals that the delivery workflow finished a
// batch, so the dashboard can flip its banner from sending to completed.
func (h *Hub) NotifyBulkSendCompleted(title, message string) {
	h.BroadcastEvent(EventBulkSendCompleted, map[string]string{
		"title":   title,
		"message": message,
	})
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade error")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Clients only listen; reads exist to detect disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
