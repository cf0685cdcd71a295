package services

import (
	"context"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is told about engine events after they are persisted.
// Implementations must not block the caller for long.
type Notifier interface {
	MatchCreated(ctx context.Context, m models.Match)
	SuperLiked(ctx context.Context, from, to primitive.ObjectID)
	MessageSent(ctx context.Context, msg models.Message)
	MessageUpdated(ctx context.Context, msg models.Message)
	MessagesRead(ctx context.Context, m models.Match, reader primitive.ObjectID)
}

type NopNotifier struct{}

func (NopNotifier) MatchCreated(context.Context, models.Match) {}
func (NopNotifier) SuperLiked(context.Context, primitive.ObjectID, primitive.ObjectID) {}
func (NopNotifier) MessageSent(context.Context, models.Message) {}
func (NopNotifier) MessageUpdated(context.Context, models.Message) {}
func (NopNotifier) MessagesRead(context.Context, models.Match, primitive.ObjectID) {}
