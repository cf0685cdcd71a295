package notify

import (
	"context"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fanout forwards every event to each notifier in order.
type Fanout []services.Notifier

func (f Fanout) MatchCreated(ctx context.Context, m models.Match) {
	for _, n := range f {
		n.MatchCreated(ctx, m)
	}
}

func (f Fanout) SuperLiked(ctx context.Context, from, to primitive.ObjectID) {
	for _, n := range f {
		n.SuperLiked(ctx, from, to)
	}
}

func (f Fanout) MessageSent(ctx context.Context, msg models.Message) {
	for _, n := range f {
		n.MessageSent(ctx, msg)
	}
}

func (f Fanout) MessageUpdated(ctx context.Context, msg models.Message) {
	for _, n := range f {
		n.MessageUpdated(ctx, msg)
	}
}

func (f Fanout) MessagesRead(ctx context.Context, m models.Match, reader primitive.ObjectID) {
	for _, n := range f {
		n.MessagesRead(ctx, m, reader)
	}
}
