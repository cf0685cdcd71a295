package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// testStore connects to MONGODB_TEST_URI and gives each test a fresh database.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := connectOnce(ctx, uri)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("spark_test_" + primitive.NewObjectID().Hex())
	st := NewStore(db)
	if err := st.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return st
}

func saveUser(t *testing.T, st *Store, lat float64, opts func(*models.User)) models.User {
	t.Helper()
	u := models.User{
		ID:          primitive.NewObjectID(),
		Name:        "u",
		Age:         25,
		Gender:      models.GenderFemale,
		Location:    models.NewPoint(3.38, lat),
		Preferences: models.DefaultPreferences(),
		IsActive:    true,
	}
	if opts != nil {
		opts(&u)
	}
	if err := st.SaveUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestApplySwipeKeepsOneDecision(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	me := saveUser(t, st, 6.52, nil)
	target := primitive.NewObjectID()

	for _, d := range []models.Decision{models.DecisionLike, models.DecisionPass, models.DecisionSuperLike} {
		if err := st.ApplySwipe(ctx, me.ID, target, d, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	got, err := st.GetUser(ctx, me.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Swipes.Liked) != 0 || len(got.Swipes.Passed) != 0 || len(got.Swipes.SuperLiked) != 1 {
		t.Fatalf("swipes = %+v", got.Swipes)
	}

	err = st.ApplySwipe(ctx, primitive.NewObjectID(), target, models.DecisionLike, time.Now())
	if !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("missing swiper: %v", err)
	}
}

func TestNearFiltersAndOrders(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	me := saveUser(t, st, 6.52, nil)
	far := saveUser(t, st, 6.56, nil)
	near := saveUser(t, st, 6.53, nil)
	saveUser(t, st, 6.53, func(u *models.User) { u.IsActive = false })
	saveUser(t, st, 6.53, func(u *models.User) { u.Gender = models.GenderMale })
	saveUser(t, st, 6.53, func(u *models.User) { u.Age = 60 })
	saveUser(t, st, 9, nil)

	got, err := st.Near(ctx, services.NearQuery{
		Point:     me.Location,
		MaxMeters: 50_000,
		Exclude:   []primitive.ObjectID{me.ID},
		MinAge:    18,
		MaxAge:    35,
		Gender:    models.GenderFemale,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].User.ID != near.ID || got[1].User.ID != far.ID {
		t.Fatalf("near = %+v", got)
	}
	if got[0].DistanceMeters < 1000 || got[0].DistanceMeters > 1200 {
		t.Fatalf("distance = %v", got[0].DistanceMeters)
	}
}

func TestActiveMatchUniquePerPair(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	first := models.NewMatch(a, b, time.Now())
	if err := st.InsertMatch(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertMatch(ctx, models.NewMatch(b, a, time.Now())); !errors.Is(err, services.ErrDuplicateRecord) {
		t.Fatalf("second active match: %v", err)
	}

	if _, ok, err := st.TransitionMatch(ctx, first.ID, []models.MatchStatus{models.MatchActive}, models.MatchUnmatched, a, time.Now()); err != nil || !ok {
		t.Fatalf("unmatch: %v %v", ok, err)
	}
	if err := st.InsertMatch(ctx, models.NewMatch(b, a, time.Now())); err != nil {
		t.Fatalf("rematch after unmatch: %v", err)
	}
	all, err := st.FindMatchesByPair(ctx, models.PairKey(a, b))
	if err != nil || len(all) != 2 {
		t.Fatalf("pair matches = %d, %v", len(all), err)
	}
}

func TestMatchCounters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	m := models.NewMatch(a, b, time.Now())
	if err := st.InsertMatch(ctx, m); err != nil {
		t.Fatal(err)
	}

	for want := int64(1); want <= 3; want++ {
		seq, err := st.NextSequence(ctx, m.ID)
		if err != nil || seq != want {
			t.Fatalf("NextSequence = %d, %v", seq, err)
		}
	}

	newer := models.LastMessage{Text: "new", Sender: a, Timestamp: time.Now(), Seq: 3}
	older := models.LastMessage{Text: "old", Sender: a, Timestamp: time.Now(), Seq: 2}
	if ok, err := st.RecordLastMessage(ctx, m.ID, newer); err != nil || !ok {
		t.Fatalf("record newer: %v %v", ok, err)
	}
	if ok, err := st.RecordLastMessage(ctx, m.ID, older); err != nil || ok {
		t.Fatalf("record older: %v %v", ok, err)
	}

	if ok, _ := st.IncrementUnread(ctx, m.ID, b); !ok {
		t.Fatal("member increment not applied")
	}
	if ok, _ := st.IncrementUnread(ctx, m.ID, primitive.NewObjectID()); ok {
		t.Fatal("non-member increment applied")
	}

	got, err := st.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage.Text != "new" || models.UnreadFor(got, b) != 1 || len(got.UnreadCount) != 2 {
		t.Fatalf("match = %+v", got)
	}

	if _, _, err := st.TransitionMatch(ctx, m.ID, []models.MatchStatus{models.MatchActive}, models.MatchBlocked, a, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.NextSequence(ctx, m.ID); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("sequence on blocked match: %v", err)
	}
}

func TestMessageUpdates(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	matchID := primitive.NewObjectID()
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Match:     matchID,
		Sender:    a,
		Receiver:  b,
		Type:      models.MessageText,
		Content:   models.Content{Text: "$set"},
		Status:    models.StatusSent,
		Seq:       1,
		Reactions: []models.Reaction{},
	}
	if err := st.InsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	if _, err := st.EditText(ctx, msg.ID, "$literal text", time.Now()); err != nil {
		t.Fatal(err)
	}
	edited, err := st.EditText(ctx, msg.ID, "third", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if edited.OriginalText != "$set" || edited.Content.Text != "third" || !edited.IsEdited {
		t.Fatalf("edited = %+v", edited)
	}

	if _, err := st.SetReaction(ctx, msg.ID, models.Reaction{User: b, Emoji: "😂", ReactedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	reacted, err := st.SetReaction(ctx, msg.ID, models.Reaction{User: b, Emoji: "❤️", ReactedAt: time.Now()})
	if err != nil || len(reacted.Reactions) != 1 || reacted.Reactions[0].Emoji != "❤️" {
		t.Fatalf("reactions = %+v, %v", reacted.Reactions, err)
	}

	if ok, _ := st.AdvanceStatus(ctx, msg.ID, models.StatusRead, time.Now()); !ok {
		t.Fatal("read not applied")
	}
	if ok, _ := st.AdvanceStatus(ctx, msg.ID, models.StatusDelivered, time.Now()); ok {
		t.Fatal("read message moved back to delivered")
	}
	if n, _ := st.CountUnread(ctx, matchID, b); n != 0 {
		t.Fatalf("unread = %d", n)
	}
}
