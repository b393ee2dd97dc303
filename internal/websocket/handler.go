package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gigglechat/giggle/internal/logger"
	"github.com/gigglechat/giggle/internal/models"
	"github.com/gigglechat/giggle/internal/realtime"
)

var log = logger.New("websocket")

// Client represents a connected websocket client
type Client struct {
	ID     uuid.UUID
	Socket *websocket.Conn
	Send   chan []byte
}

// inbound is what clients are allowed to push over the socket: typing
// signals only. Messages go through the HTTP submit path so they hit
// the moderation pipeline.
type inbound struct {
	Kind       string    `json:"kind"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Typing     bool      `json:"typing"`
}

// Manager fans authoritative change events out to connected clients.
// It is the push side of the realtime transport: the engine and the
// relationship service publish into it, clients receive
// realtime.Event payloads.
type Manager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.Mutex
}

// NewManager creates a new websocket manager
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the websocket manager
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			log.Info("Client connected: %s", client.ID)
			m.mutex.Unlock()
			m.broadcastPresence(client.ID, true)
		case client := <-m.unregister:
			m.mutex.Lock()
			_, ok := m.clients[client.ID]
			if ok {
				delete(m.clients, client.ID)
				close(client.Send)
				log.Info("Client disconnected: %s", client.ID)
			}
			m.mutex.Unlock()
			if ok {
				m.broadcastPresence(client.ID, false)
			}
		}
	}
}

// broadcastPresence tells every other connected client that a user came
// online or went offline.
func (m *Manager) broadcastPresence(userID uuid.UUID, online bool) {
	ev := realtime.Event{
		Kind:      realtime.EventPresenceChanged,
		UserID:    userID,
		Online:    online,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("Failed to marshal presence event: %v", err)
		return
	}

	m.mutex.Lock()
	targets := make([]uuid.UUID, 0, len(m.clients))
	for id := range m.clients {
		if id != userID {
			targets = append(targets, id)
		}
	}
	m.mutex.Unlock()

	for _, id := range targets {
		m.sendToUser(id, payload)
	}
}

// PublishMessage delivers a message_upserted event to both
// participants. Each side receives the copy sanitized for its view, so
// quarantined content never reaches the receiver. The sender's copy
// carries the temp id so its client can reconcile the optimistic entry.
func (m *Manager) PublishMessage(msg *models.Message, tempID uuid.UUID) {
	senderEvent := realtime.Event{
		Kind:    realtime.EventMessageUpserted,
		Message: msg.Sanitized(msg.SenderID),
		TempID:  tempID,
	}
	m.sendEvent(msg.SenderID, senderEvent)

	receiverEvent := realtime.Event{
		Kind:    realtime.EventMessageUpserted,
		Message: msg.Sanitized(msg.ReceiverID),
	}
	m.sendEvent(msg.ReceiverID, receiverEvent)
}

// PublishBlockChange notifies both sides of a block edge change.
func (m *Manager) PublishBlockChange(blockerID, blockedID uuid.UUID, blocked bool) {
	ev := realtime.Event{
		Kind:      realtime.EventBlockChanged,
		BlockerID: blockerID,
		BlockedID: blockedID,
		Blocked:   blocked,
	}
	m.sendEvent(blockerID, ev)
	m.sendEvent(blockedID, ev)
}

// PublishTyping relays an ephemeral typing signal to the receiver.
func (m *Manager) PublishTyping(senderID, receiverID uuid.UUID, typing bool) {
	m.sendEvent(receiverID, realtime.Event{
		Kind:      realtime.EventTyping,
		UserID:    senderID,
		Typing:    typing,
		Timestamp: time.Now().UTC(),
	})
}

func (m *Manager) sendEvent(userID uuid.UUID, ev realtime.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error("Failed to marshal event: %v", err)
		return
	}
	m.sendToUser(userID, payload)
}

func (m *Manager) sendToUser(userID uuid.UUID, message []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if client, ok := m.clients[userID]; ok {
		select {
		case client.Send <- message:
			log.Debug("Event sent to user %s", userID)
		default:
			close(client.Send)
			delete(m.clients, client.ID)
			log.Warn("Failed to send event to user %s, removing client", userID)
		}
	} else {
		log.Debug("User %s not connected", userID)
	}
}

// HandleWebSocket handles websocket requests from clients
func (m *Manager) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		log.Warn("No userID in context, rejecting connection from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		log.Error("Invalid UUID in context from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user identification"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			log.Debug("WebSocket origin: %s", origin)
			// TODO: restrict origins once the client origin list is final
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:     userUUID,
		Socket: conn,
		Send:   make(chan []byte, 256),
	}

	m.register <- client

	go client.readPump(m)
	go client.writePump()
	log.Info("Client %s connected and ready", client.ID)
}

// readPump pumps typing signals from the websocket connection to the manager
func (c *Client) readPump(m *Manager) {
	defer func() {
		m.unregister <- c
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(64 * 1024)
	c.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from client %s: %v", c.ID, err)
			} else {
				log.Info("Client %s closed connection: %v", c.ID, err)
			}
			break
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil {
			log.Error("Error unmarshaling inbound frame from %s: %v", c.ID, err)
			continue
		}

		switch in.Kind {
		case string(realtime.EventTyping):
			if in.ReceiverID == uuid.Nil {
				log.Debug("Typing signal with no receiver from client %s", c.ID)
				continue
			}
			m.PublishTyping(c.ID, in.ReceiverID, in.Typing)
		default:
			log.Warn("Unknown inbound kind %q from client %s", in.Kind, c.ID)
		}
	}
}

// writePump pumps messages from the manager to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
