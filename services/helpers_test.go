package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spark/memstore"
	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recorder counts notifier calls.
type recorder struct {
	mu        sync.Mutex
	matches   []models.Match
	superLike int
	sent      []models.Message
	updated   []models.Message
	reads     int
}

func (r *recorder) MatchCreated(_ context.Context, m models.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, m)
}

func (r *recorder) SuperLiked(context.Context, primitive.ObjectID, primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.superLike++
}

func (r *recorder) MessageSent(_ context.Context, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recorder) MessageUpdated(_ context.Context, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, msg)
}

func (r *recorder) MessagesRead(context.Context, models.Match, primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
}

type engine struct {
	store     *memstore.Store
	notes     *recorder
	matches   *services.MatchService
	swipes    *services.SwipeService
	discovery *services.DiscoveryService
	messages  *services.MessageService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	st := memstore.New()
	rec := &recorder{}
	matches := services.NewMatchService(st, rec)
	return &engine{
		store:     st,
		notes:     rec,
		matches:   matches,
		swipes:    services.NewSwipeService(st, matches, rec),
		discovery: services.NewDiscoveryService(st, false),
		messages:  services.NewMessageService(st, st, matches, rec),
	}
}

type userOpt func(*models.User)

func at(lng, lat float64) userOpt {
	return func(u *models.User) { u.Location = models.NewPoint(lng, lat) }
}

func aged(n int) userOpt { return func(u *models.User) { u.Age = n } }

func gender(g models.Gender) userOpt { return func(u *models.User) { u.Gender = g } }

func showMe(g models.Gender) userOpt { return func(u *models.User) { u.Preferences.ShowMe = g } }

func inactive() userOpt { return func(u *models.User) { u.IsActive = false } }

func (e *engine) user(t *testing.T, name string, opts ...userOpt) models.User {
	t.Helper()
	u := models.User{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Age:         25,
		Gender:      models.GenderFemale,
		Location:    models.NewPoint(3.38, 6.52),
		Preferences: models.DefaultPreferences(),
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	for _, o := range opts {
		o(&u)
	}
	if err := e.store.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	return u
}

// match makes a and b like each other and returns the resulting match.
func (e *engine) match(t *testing.T, a, b models.User) models.Match {
	t.Helper()
	ctx := context.Background()
	if _, err := e.swipes.RecordSwipe(ctx, a.ID, b.ID, models.DecisionLike); err != nil {
		t.Fatalf("swipe a->b: %v", err)
	}
	res, err := e.swipes.RecordSwipe(ctx, b.ID, a.ID, models.DecisionLike)
	if err != nil {
		t.Fatalf("swipe b->a: %v", err)
	}
	if !res.Matched || res.Match == nil {
		t.Fatalf("expected a match, got %+v", res)
	}
	return *res.Match
}

func (e *engine) send(t *testing.T, m models.Match, from primitive.ObjectID, text string) models.Message {
	t.Helper()
	msg, err := e.messages.Send(context.Background(), m.ID, from, services.SendInput{
		Type:    models.MessageText,
		Content: models.Content{Text: text},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return msg
}

func wantKind(t *testing.T, err error, kind services.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var se *services.Error
	if !errors.As(err, &se) || se.Kind != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
