// Package notify delivers engine events to users outside the request path.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"spark/models"
	"spark/services"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub models.PushSubscription) error
	FindSubscription(ctx context.Context, user primitive.ObjectID) (models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, user primitive.ObjectID) error
}

// Presence reports whether a user has a live realtime connection.
type Presence interface {
	IsOnline(user primitive.ObjectID) bool
}

type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Sender posts one encrypted payload to a subscription endpoint.
type Sender func(payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Push sends web push notifications to users who are not connected.
type Push struct {
	subs     SubscriptionStore
	presence Presence
	vapid    VAPIDConfig
	send     Sender
	timeout  time.Duration
}

func NewPush(subs SubscriptionStore, presence Presence, vapid VAPIDConfig) *Push {
	return &Push{
		subs:     subs,
		presence: presence,
		vapid:    vapid,
		send:     webpush.SendNotification,
		timeout:  5 * time.Second,
	}
}

// WithSender swaps the transport, used by tests.
func (p *Push) WithSender(s Sender) *Push {
	p.send = s
	return p
}

func (p *Push) Enabled() bool {
	return p.vapid.PrivateKey != "" && p.vapid.PublicKey != ""
}

func (p *Push) PublicKey() string { return p.vapid.PublicKey }

// Subscribe stores or replaces the user's endpoint.
func (p *Push) Subscribe(ctx context.Context, user primitive.ObjectID, sub webpush.Subscription) error {
	return p.subs.SaveSubscription(ctx, models.PushSubscription{
		ID:     primitive.NewObjectID(),
		UserID: user,
		Sub:    sub,
	})
}

type payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

func (p *Push) MatchCreated(_ context.Context, m models.Match) {
	for _, u := range m.Users {
		p.notify(u, payload{
			Title: "New match! 🎉",
			Body:  "You have a new match",
			Data:  map[string]any{"type": "match", "matchId": m.ID.Hex()},
		})
	}
}

func (p *Push) SuperLiked(_ context.Context, from, to primitive.ObjectID) {
	p.notify(to, payload{
		Title: "Someone super liked you ⭐",
		Body:  "Open the app to see who",
		Data:  map[string]any{"type": "superLike", "from": from.Hex()},
	})
}

func (p *Push) MessageSent(_ context.Context, msg models.Message) {
	p.notify(msg.Receiver, payload{
		Title: "New message",
		Body:  truncate(models.Preview(msg), 100),
		Data:  map[string]any{"type": "message", "matchId": msg.Match.Hex(), "messageId": msg.ID.Hex()},
	})
}

func (p *Push) MessageUpdated(context.Context, models.Message) {}
func (p *Push) MessagesRead(context.Context, models.Match, primitive.ObjectID) {}

// notify sends in the background. The request that triggered it has
// usually finished by the time the push service answers.
func (p *Push) notify(user primitive.ObjectID, msg payload) {
	if !p.Enabled() {
		return
	}
	if p.presence != nil && p.presence.IsOnline(user) {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Push] panic sending to %s: %v", user.Hex(), r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		p.deliver(ctx, user, msg)
	}()
}

func (p *Push) deliver(ctx context.Context, user primitive.ObjectID, msg payload) {
	sub, err := p.subs.FindSubscription(ctx, user)
	if errors.Is(err, services.ErrRecordNotFound) {
		return
	}
	if err != nil {
		log.Printf("[Push] subscription lookup for %s failed: %v", user.Hex(), err)
		return
	}

	msg.Data["timestamp"] = time.Now().Unix()
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Push] marshal payload: %v", err)
		return
	}

	resp, err := p.send(body, &sub.Sub, &webpush.Options{
		Subscriber:      p.vapid.Subject,
		VAPIDPublicKey:  p.vapid.PublicKey,
		VAPIDPrivateKey: p.vapid.PrivateKey,
		TTL:             30,
	})
	if resp != nil {
		defer resp.Body.Close()
	}
	if err == nil && resp != nil && resp.StatusCode >= 400 {
		err = errors.New(resp.Status)
	}
	if err != nil {
		log.Printf("[Push] send to %s failed: %v", user.Hex(), err)
		if resp != nil && (resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound) {
			if delErr := p.subs.DeleteSubscription(ctx, user); delErr != nil {
				log.Printf("[Push] delete expired subscription for %s: %v", user.Hex(), delErr)
			}
		}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

var _ services.Notifier = (*Push)(nil)
