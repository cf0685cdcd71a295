package services_test

import (
	"context"
	"testing"
	"time"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateOrGetMatchRejectsSelf(t *testing.T) {
	e := newEngine(t)
	a := e.user(t, "a")
	_, _, err := e.matches.CreateOrGetMatch(context.Background(), a.ID, a.ID, services.MatchOptions{})
	wantKind(t, err, services.KindInvalidInput)
}

func TestCreateOrGetMatchIsIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	m1, created, err := e.matches.CreateOrGetMatch(ctx, a, b, services.MatchOptions{})
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	m2, created, err := e.matches.CreateOrGetMatch(ctx, b, a, services.MatchOptions{})
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if m1.ID != m2.ID {
		t.Fatalf("got %s and %s", m1.ID.Hex(), m2.ID.Hex())
	}
}

func TestGetRequiresMembership(t *testing.T) {
	e := newEngine(t)
	m := e.match(t, e.user(t, "a"), e.user(t, "b"))

	_, err := e.matches.Get(context.Background(), m.ID, primitive.NewObjectID())
	wantKind(t, err, services.KindNotAMember)

	_, err = e.matches.Get(context.Background(), primitive.NewObjectID(), m.Users[0])
	wantKind(t, err, services.KindNotFound)
}

func TestMatchTransitions(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.user(t, "a")
	b := e.user(t, "b")
	m := e.match(t, a, b)

	got, err := e.matches.Unmatch(ctx, m.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.MatchUnmatched || got.UnmatchedBy == nil || *got.UnmatchedBy != a.ID {
		t.Fatalf("after unmatch: %+v", got)
	}

	again, err := e.matches.Unmatch(ctx, m.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *again.UnmatchedBy != a.ID {
		t.Fatal("repeated unmatch changed unmatchedBy")
	}

	blocked, err := e.matches.Block(ctx, m.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if blocked.Status != models.MatchBlocked || *blocked.BlockedBy != b.ID {
		t.Fatalf("after block: %+v", blocked)
	}

	still, err := e.matches.Unmatch(ctx, m.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if still.Status != models.MatchBlocked {
		t.Fatalf("unmatch moved a blocked match to %s", still.Status)
	}

	_, err = e.matches.Block(ctx, m.ID, primitive.NewObjectID())
	wantKind(t, err, services.KindNotAMember)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	me := e.user(t, "me")
	first := e.match(t, me, e.user(t, "x"))
	second := e.match(t, me, e.user(t, "y"))
	third := e.match(t, me, e.user(t, "z"))

	time.Sleep(2 * time.Millisecond)
	e.send(t, first, me.ID, "hello")

	if _, err := e.matches.Unmatch(ctx, third.ID, me.ID); err != nil {
		t.Fatal(err)
	}

	page, err := e.matches.ListForUser(ctx, me.ID, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != first.ID || !page.HasMore {
		t.Fatalf("page 1 = %+v", page)
	}
	page, err = e.matches.ListForUser(ctx, me.ID, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != second.ID || page.HasMore {
		t.Fatalf("page 2 = %+v", page)
	}
}

func TestRecordLastMessageIgnoresOlderSequence(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.user(t, "a")
	b := e.user(t, "b")
	m := e.match(t, a, b)

	e.send(t, m, a.ID, "one")
	e.send(t, m, b.ID, "two")

	stale := models.LastMessage{Text: "late", Sender: a.ID, Timestamp: time.Now(), Type: models.MessageText, Seq: 1}
	if err := e.matches.RecordLastMessage(ctx, m.ID, stale); err != nil {
		t.Fatal(err)
	}

	got, _ := e.store.GetMatch(ctx, m.ID)
	if got.LastMessage == nil || got.LastMessage.Text != "two" || got.LastMessage.Seq != 2 {
		t.Fatalf("lastMessage = %+v", got.LastMessage)
	}
	if got.MessageCount != 2 || !got.IsConversationStarted {
		t.Fatalf("count=%d started=%v", got.MessageCount, got.IsConversationStarted)
	}
}

func TestUnreadCounterIgnoresNonMembers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	m := e.match(t, e.user(t, "a"), e.user(t, "b"))
	stranger := primitive.NewObjectID()

	if err := e.matches.IncrementUnread(ctx, m.ID, stranger); err != nil {
		t.Fatal(err)
	}
	got, _ := e.store.GetMatch(ctx, m.ID)
	if _, ok := got.UnreadCount[stranger.Hex()]; ok || len(got.UnreadCount) != 2 {
		t.Fatalf("unreadCount = %v", got.UnreadCount)
	}
}
