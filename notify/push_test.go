package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"spark/memstore"
	"spark/models"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type presence map[primitive.ObjectID]bool

func (p presence) IsOnline(u primitive.ObjectID) bool { return p[u] }

type sent struct {
	body     payload
	endpoint string
	opts     webpush.Options
}

func fakeSender(status int, out chan<- sent) Sender {
	return func(body []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		var p payload
		_ = json.Unmarshal(body, &p)
		out <- sent{body: p, endpoint: sub.Endpoint, opts: *opts}
		return &http.Response{StatusCode: status, Status: http.StatusText(status), Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

var testVAPID = VAPIDConfig{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:test@spark.local"}

func subscribe(t *testing.T, p *Push, user primitive.ObjectID) {
	t.Helper()
	err := p.Subscribe(context.Background(), user, webpush.Subscription{
		Endpoint: "https://push.example/" + user.Hex(),
		Keys:     webpush.Keys{P256dh: "p", Auth: "a"},
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
}

func receive(t *testing.T, ch <-chan sent) sent {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no push sent")
	}
	return sent{}
}

func TestPushMessageSent(t *testing.T) {
	st := memstore.New()
	ch := make(chan sent, 4)
	p := NewPush(st, presence{}, testVAPID).WithSender(fakeSender(http.StatusCreated, ch))

	receiver := primitive.NewObjectID()
	subscribe(t, p, receiver)

	msg := models.Message{
		ID:       primitive.NewObjectID(),
		Match:    primitive.NewObjectID(),
		Receiver: receiver,
		Type:     models.MessageText,
		Content:  models.Content{Text: strings.Repeat("x", 150)},
	}
	p.MessageSent(context.Background(), msg)

	s := receive(t, ch)
	if s.endpoint != "https://push.example/"+receiver.Hex() {
		t.Fatalf("endpoint = %s", s.endpoint)
	}
	if s.opts.VAPIDPrivateKey != "priv" || s.opts.Subscriber != testVAPID.Subject || s.opts.TTL != 30 {
		t.Fatalf("options = %+v", s.opts)
	}
	if s.body.Data["matchId"] != msg.Match.Hex() {
		t.Fatalf("data = %v", s.body.Data)
	}
	if got := len([]rune(s.body.Body)); got != 103 {
		t.Fatalf("body not truncated: %d runes", got)
	}
}

func TestPushSkipsOnlineUsers(t *testing.T) {
	st := memstore.New()
	ch := make(chan sent, 4)
	online := primitive.NewObjectID()
	offline := primitive.NewObjectID()
	p := NewPush(st, presence{online: true}, testVAPID).WithSender(fakeSender(http.StatusCreated, ch))
	subscribe(t, p, online)
	subscribe(t, p, offline)

	p.MatchCreated(context.Background(), models.NewMatch(online, offline, time.Now()))

	s := receive(t, ch)
	if s.endpoint != "https://push.example/"+offline.Hex() {
		t.Fatalf("pushed to %s", s.endpoint)
	}
	select {
	case extra := <-ch:
		t.Fatalf("online user was pushed: %s", extra.endpoint)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPushDisabledWithoutKeys(t *testing.T) {
	st := memstore.New()
	ch := make(chan sent, 1)
	p := NewPush(st, nil, VAPIDConfig{}).WithSender(fakeSender(http.StatusCreated, ch))
	user := primitive.NewObjectID()
	subscribe(t, p, user)

	if p.Enabled() {
		t.Fatal("push enabled without keys")
	}
	p.SuperLiked(context.Background(), primitive.NewObjectID(), user)
	select {
	case <-ch:
		t.Fatal("sent while disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

type deletions struct {
	*memstore.Store
	deleted chan primitive.ObjectID
}

func (d *deletions) DeleteSubscription(ctx context.Context, user primitive.ObjectID) error {
	err := d.Store.DeleteSubscription(ctx, user)
	d.deleted <- user
	return err
}

func TestPushDropsExpiredSubscription(t *testing.T) {
	st := &deletions{Store: memstore.New(), deleted: make(chan primitive.ObjectID, 1)}
	ch := make(chan sent, 1)
	p := NewPush(st, nil, testVAPID).WithSender(fakeSender(http.StatusGone, ch))
	user := primitive.NewObjectID()
	subscribe(t, p, user)

	p.SuperLiked(context.Background(), primitive.NewObjectID(), user)
	receive(t, ch)

	select {
	case got := <-st.deleted:
		if got != user {
			t.Fatalf("deleted %s", got.Hex())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expired subscription kept")
	}
	if _, err := st.FindSubscription(context.Background(), user); err == nil {
		t.Fatal("subscription still stored")
	}
}

func TestFanoutForwardsToAll(t *testing.T) {
	ch := make(chan sent, 2)
	st := memstore.New()
	user := primitive.NewObjectID()
	p1 := NewPush(st, nil, testVAPID).WithSender(fakeSender(http.StatusCreated, ch))
	p2 := NewPush(st, nil, testVAPID).WithSender(fakeSender(http.StatusCreated, ch))
	subscribe(t, p1, user)

	Fanout{p1, p2}.SuperLiked(context.Background(), primitive.NewObjectID(), user)
	receive(t, ch)
	receive(t, ch)
}
