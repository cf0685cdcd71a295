package database

import (
	"context"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveSubscription upserts by user, so a user keeps one endpoint.
func (s *Store) SaveSubscription(ctx context.Context, sub models.PushSubscription) error {
	_, err := s.subscriptions.UpdateOne(ctx,
		bson.M{"userId": sub.UserID},
		bson.M{
			"$set":         bson.M{"sub": sub.Sub},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) FindSubscription(ctx context.Context, user primitive.ObjectID) (models.PushSubscription, error) {
	var sub models.PushSubscription
	if err := s.subscriptions.FindOne(ctx, bson.M{"userId": user}).Decode(&sub); err != nil {
		return models.PushSubscription{}, notFound(err)
	}
	return sub, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, user primitive.ObjectID) error {
	_, err := s.subscriptions.DeleteOne(ctx, bson.M{"userId": user})
	return err
}
