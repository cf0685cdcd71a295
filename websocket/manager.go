// Package websocket pushes match and message events to connected users and
// accepts delivery, read and typing signals back from them.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"spark/models"
	"spark/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
	trackerTimeout = 10 * time.Second
)

// Tracker applies status changes reported by clients.
type Tracker interface {
	MarkDelivered(ctx context.Context, messageID, receiver primitive.ObjectID) (models.Message, error)
	MarkFailed(ctx context.Context, messageID primitive.ObjectID) (models.Message, error)
	MarkAllReadForMatch(ctx context.Context, matchID, reader primitive.ObjectID) (int64, error)
}

// Partners resolves the other member of a match for typing indicators.
type Partners interface {
	Partner(ctx context.Context, matchID, user primitive.ObjectID) (primitive.ObjectID, error)
}

type Manager struct {
	clients    map[primitive.ObjectID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex

	tracker  Tracker
	partners Partners
	upgrader websocket.Upgrader
}

type Client struct {
	conn    *websocket.Conn
	userID  primitive.ObjectID
	send    chan []byte
	manager *Manager
}

type event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewManager builds a hub. An empty origin list accepts any origin.
func NewManager(allowedOrigins []string) *Manager {
	m := &Manager{
		clients:    make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return m
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

var _ services.Notifier = (*Manager)(nil)

// Use wires the services the hub reports client signals to.
func (m *Manager) Use(tracker Tracker, partners Partners) {
	m.tracker = tracker
	m.partners = partners
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if m.clients[client.userID] == nil {
				m.clients[client.userID] = make(map[*Client]bool)
			}
			m.clients[client.userID][client] = true
			m.mu.Unlock()
			log.Printf("✅ WebSocket client registered for %s", client.userID.Hex())

		case client := <-m.unregister:
			m.remove(client)

		case <-m.quit:
			m.mu.Lock()
			for _, set := range m.clients {
				for c := range set {
					close(c.send)
				}
			}
			m.clients = make(map[primitive.ObjectID]map[*Client]bool)
			m.mu.Unlock()
			return
		}
	}
}

// Stop closes every connection and ends Start.
func (m *Manager) Stop() {
	close(m.quit)
}

// drop hands a client to the Start loop for removal unless the hub has stopped.
func (m *Manager) drop(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.quit:
	}
}

func (m *Manager) remove(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(m.clients, client.userID)
	}
	log.Printf("❌ WebSocket client unregistered for %s", client.userID.Hex())
}

func (m *Manager) IsOnline(user primitive.ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[user]) > 0
}

func (m *Manager) ConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// sendTo queues an event on every connection of user. It reports whether the
// user was connected and whether at least one connection accepted it.
func (m *Manager) sendTo(user primitive.ObjectID, typ string, payload any) (online, queued bool) {
	data, err := json.Marshal(event{Type: typ, Payload: payload})
	if err != nil {
		log.Printf("❌ Error marshaling %s event: %v", typ, err)
		return false, false
	}

	var slow []*Client
	m.mu.RLock()
	for c := range m.clients[user] {
		online = true
		select {
		case c.send <- data:
			queued = true
		default:
			slow = append(slow, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range slow {
		go m.drop(c)
	}
	return online, queued
}

// ===== ENGINE EVENTS =====

func (m *Manager) MatchCreated(_ context.Context, match models.Match) {
	for _, u := range match.Users {
		m.sendTo(u, "match_created", match)
	}
}

func (m *Manager) SuperLiked(_ context.Context, from, to primitive.ObjectID) {
	m.sendTo(to, "super_like", gin.H{"from": from.Hex(), "time": time.Now().Unix()})
}

// MessageSent pushes the message to the receiver and echoes it to the
// sender's other sessions. A connected receiver whose queues are all full
// gets the message marked failed.
func (m *Manager) MessageSent(ctx context.Context, msg models.Message) {
	online, queued := m.sendTo(msg.Receiver, "new_message", msg)
	m.sendTo(msg.Sender, "new_message", msg)

	if online && !queued && m.tracker != nil {
		if _, err := m.tracker.MarkFailed(ctx, msg.ID); err != nil {
			log.Printf("❌ Could not mark message %s failed: %v", msg.ID.Hex(), err)
		}
	}
}

func (m *Manager) MessageUpdated(_ context.Context, msg models.Message) {
	m.sendTo(msg.Sender, "message_updated", msg)
	m.sendTo(msg.Receiver, "message_updated", msg)
}

func (m *Manager) MessagesRead(_ context.Context, match models.Match, reader primitive.ObjectID) {
	other, ok := models.Partner(match, reader)
	if !ok {
		return
	}
	m.sendTo(other, "messages_read", gin.H{
		"matchId":   match.ID.Hex(),
		"readerId":  reader.Hex(),
		"timestamp": time.Now().Unix(),
	})
}

// ===== CONNECTIONS =====

// Handler upgrades an authenticated request. It expects "userId" to be set
// by the auth middleware.
func Handler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := primitive.ObjectIDFromHex(c.GetString("userId"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Invalid user ID"})
			return
		}

		conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, sendBuffer),
			manager: m,
		}
		welcome, _ := json.Marshal(event{Type: "connected", Payload: gin.H{
			"userId": userID.Hex(),
			"time":   time.Now().Unix(),
		}})
		client.send <- welcome

		select {
		case m.register <- client:
		case <-m.quit:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

type inbound struct {
	Type    string `json:"type"`
	Payload struct {
		MatchID   string `json:"matchId"`
		MessageID string `json:"messageId"`
	} `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		c.manager.drop(c)
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
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Printf("❌ WebSocket message unmarshal error: %v", err)
			continue
		}
		c.handle(in)
	}
}

func (c *Client) handle(in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), trackerTimeout)
	defer cancel()

	switch in.Type {
	case "ping":
		c.manager.sendTo(c.userID, "pong", gin.H{"time": time.Now().Unix()})

	case "message_delivered":
		id, err := primitive.ObjectIDFromHex(in.Payload.MessageID)
		if err != nil || c.manager.tracker == nil {
			return
		}
		if _, err := c.manager.tracker.MarkDelivered(ctx, id, c.userID); err != nil {
			log.Printf("❌ Delivery ack for %s failed: %v", in.Payload.MessageID, err)
		}

	case "message_read":
		id, err := primitive.ObjectIDFromHex(in.Payload.MatchID)
		if err != nil || c.manager.tracker == nil {
			return
		}
		if _, err := c.manager.tracker.MarkAllReadForMatch(ctx, id, c.userID); err != nil {
			log.Printf("❌ Read ack for match %s failed: %v", in.Payload.MatchID, err)
		}

	case "typing_start", "typing_end":
		id, err := primitive.ObjectIDFromHex(in.Payload.MatchID)
		if err != nil || c.manager.partners == nil {
			return
		}
		other, err := c.manager.partners.Partner(ctx, id, c.userID)
		if err != nil {
			return
		}
		c.manager.sendTo(other, in.Type, gin.H{
			"matchId":   in.Payload.MatchID,
			"userId":    c.userID.Hex(),
			"timestamp": time.Now().Unix(),
		})
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
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
