package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spark/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeTracker struct {
	mu        sync.Mutex
	delivered []primitive.ObjectID
	failed    []primitive.ObjectID
	read      []primitive.ObjectID
	done      chan struct{}
}

func newFakeTracker() *fakeTracker { return &fakeTracker{done: make(chan struct{}, 8)} }

func (f *fakeTracker) MarkDelivered(_ context.Context, id, _ primitive.ObjectID) (models.Message, error) {
	f.mu.Lock()
	f.delivered = append(f.delivered, id)
	f.mu.Unlock()
	f.done <- struct{}{}
	return models.Message{ID: id}, nil
}

func (f *fakeTracker) MarkFailed(_ context.Context, id primitive.ObjectID) (models.Message, error) {
	f.mu.Lock()
	f.failed = append(f.failed, id)
	f.mu.Unlock()
	f.done <- struct{}{}
	return models.Message{ID: id}, nil
}

func (f *fakeTracker) MarkAllReadForMatch(_ context.Context, id, _ primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	f.read = append(f.read, id)
	f.mu.Unlock()
	f.done <- struct{}{}
	return 1, nil
}

type fixedPartner primitive.ObjectID

func (p fixedPartner) Partner(context.Context, primitive.ObjectID, primitive.ObjectID) (primitive.ObjectID, error) {
	return primitive.ObjectID(p), nil
}

// newHub serves the hub behind a stand-in for the auth middleware that
// trusts ?user=.
func newHub(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := NewManager(nil)
	go m.Start()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("userId", c.Query("user"))
	}, Handler(m))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		m.Stop()
	})
	return m, srv
}

func dial(t *testing.T, m *Manager, srv *httptest.Server, user primitive.ObjectID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user.Hex()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if got := readEvent(t, conn); got.Type != "connected" {
		t.Fatalf("first event = %s", got.Type)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !m.IsOnline(user) {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev received
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	_, srv := newHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("anonymous dial succeeded")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("response = %v", resp)
	}
}

func TestMessageSentReachesBothMembers(t *testing.T) {
	m, srv := newHub(t)
	sender, receiver := primitive.NewObjectID(), primitive.NewObjectID()
	rc := dial(t, m, srv, receiver)
	sc := dial(t, m, srv, sender)

	msg := models.Message{ID: primitive.NewObjectID(), Sender: sender, Receiver: receiver, Content: models.Content{Text: "hi"}}
	m.MessageSent(context.Background(), msg)

	for _, conn := range []*websocket.Conn{rc, sc} {
		ev := readEvent(t, conn)
		if ev.Type != "new_message" {
			t.Fatalf("event = %s", ev.Type)
		}
		var got models.Message
		if err := json.Unmarshal(ev.Payload, &got); err != nil || got.ID != msg.ID {
			t.Fatalf("payload = %s (%v)", ev.Payload, err)
		}
	}
	if m.ConnectedUsers() != 2 {
		t.Fatalf("ConnectedUsers = %d", m.ConnectedUsers())
	}
}

func TestClientSignalsReachTracker(t *testing.T) {
	m, srv := newHub(t)
	tracker := newFakeTracker()
	user, partner := primitive.NewObjectID(), primitive.NewObjectID()
	m.Use(tracker, fixedPartner(partner))

	uc := dial(t, m, srv, user)
	pc := dial(t, m, srv, partner)

	msgID, matchID := primitive.NewObjectID(), primitive.NewObjectID()
	send := func(typ string, payload map[string]string) {
		t.Helper()
		if err := uc.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
			t.Fatal(err)
		}
	}

	send("message_delivered", map[string]string{"messageId": msgID.Hex()})
	send("message_read", map[string]string{"matchId": matchID.Hex()})
	for i := 0; i < 2; i++ {
		select {
		case <-tracker.done:
		case <-time.After(2 * time.Second):
			t.Fatal("tracker not called")
		}
	}
	tracker.mu.Lock()
	if len(tracker.delivered) != 1 || tracker.delivered[0] != msgID || len(tracker.read) != 1 || tracker.read[0] != matchID {
		t.Fatalf("tracker = %+v", tracker)
	}
	tracker.mu.Unlock()

	send("typing_start", map[string]string{"matchId": matchID.Hex()})
	ev := readEvent(t, pc)
	if ev.Type != "typing_start" || !strings.Contains(string(ev.Payload), user.Hex()) {
		t.Fatalf("partner got %s %s", ev.Type, ev.Payload)
	}

	send("ping", nil)
	if ev := readEvent(t, uc); ev.Type != "pong" {
		t.Fatalf("ping answered with %s", ev.Type)
	}
}

func TestMessagesReadNotifiesPartner(t *testing.T) {
	m, srv := newHub(t)
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	ac := dial(t, m, srv, a)

	m.MessagesRead(context.Background(), models.NewMatch(a, b, time.Now()), b)
	ev := readEvent(t, ac)
	if ev.Type != "messages_read" || !strings.Contains(string(ev.Payload), b.Hex()) {
		t.Fatalf("event = %s %s", ev.Type, ev.Payload)
	}
}

func TestFullQueueMarksMessageFailed(t *testing.T) {
	m := NewManager(nil)
	tracker := newFakeTracker()
	m.Use(tracker, nil)
	go m.Start()
	defer m.Stop()

	receiver := primitive.NewObjectID()
	stuck := &Client{userID: receiver, send: make(chan []byte), manager: m}
	m.register <- stuck
	for !m.IsOnline(receiver) {
		time.Sleep(time.Millisecond)
	}

	msg := models.Message{ID: primitive.NewObjectID(), Sender: primitive.NewObjectID(), Receiver: receiver}
	m.MessageSent(context.Background(), msg)

	select {
	case <-tracker.done:
	case <-time.After(2 * time.Second):
		t.Fatal("MarkFailed not called")
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if len(tracker.failed) != 1 || tracker.failed[0] != msg.ID {
		t.Fatalf("failed = %v", tracker.failed)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.spark.dev"})
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	if check(req) {
		t.Fatal("foreign origin accepted")
	}
	req.Header.Set("Origin", "https://app.spark.dev")
	if !check(req) {
		t.Fatal("allowed origin rejected")
	}
}
