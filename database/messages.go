package database

import (
	"context"
	"time"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var unreadStatuses = bson.A{models.StatusSent, models.StatusDelivered}

func (s *Store) InsertMessage(ctx context.Context, m models.Message) error {
	_, err := s.messages.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicateRecord
	}
	return err
}

func (s *Store) GetMessage(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	var m models.Message
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.Message{}, notFound(err)
	}
	return m, nil
}

// AdvanceStatus guards the transition in the filter so concurrent acks
// cannot move a message backwards.
func (s *Store) AdvanceStatus(ctx context.Context, id primitive.ObjectID, to models.MessageStatus, at time.Time) (bool, error) {
	set := bson.M{"status": to, "updatedAt": at}
	switch to {
	case models.StatusDelivered:
		set["deliveredAt"] = at
	case models.StatusRead:
		set["readAt"] = at
	}

	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": models.AdvanceFrom(to)}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, exists(ctx, s.messages, id)
	}
	return true, nil
}

func (s *Store) MarkMatchRead(ctx context.Context, matchID, reader primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.messages.UpdateMany(ctx,
		bson.M{"match": matchID, "receiver": reader, "status": bson.M{"$in": unreadStatuses}},
		bson.M{"$set": bson.M{"status": models.StatusRead, "readAt": at, "updatedAt": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) CountUnread(ctx context.Context, matchID, reader primitive.ObjectID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{
		"match":    matchID,
		"receiver": reader,
		"status":   bson.M{"$in": unreadStatuses},
	})
}

func (s *Store) CountUnreadForUser(ctx context.Context, user primitive.ObjectID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{
		"receiver": user,
		"status":   bson.M{"$in": unreadStatuses},
	})
}

// EditText keeps the text from before the first edit. Stage fields read the
// document as it was before the stage, so originalText sees the old text.
func (s *Store) EditText(ctx context.Context, id primitive.ObjectID, text string, at time.Time) (models.Message, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "originalText", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$isEdited", true}}},
				"$originalText",
				"$content.text",
			}}}},
			{Key: "content.text", Value: bson.D{{Key: "$literal", Value: text}}},
			{Key: "isEdited", Value: true},
			{Key: "editedAt", Value: at},
			{Key: "updatedAt", Value: at},
		}}},
	}
	return s.findAndUpdateMessage(ctx, id, update)
}

func (s *Store) SetReaction(ctx context.Context, id primitive.ObjectID, r models.Reaction) (models.Message, error) {
	entry := bson.D{
		{Key: "user", Value: r.User},
		{Key: "emoji", Value: bson.D{{Key: "$literal", Value: r.Emoji}}},
		{Key: "reactedAt", Value: r.ReactedAt},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reactions", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$reactions", bson.A{}}}}},
					{Key: "as", Value: "r"},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$r.user", r.User}}}},
				}}},
				bson.A{entry},
			}}}},
		}}},
	}
	return s.findAndUpdateMessage(ctx, id, update)
}

func (s *Store) RemoveReaction(ctx context.Context, id, user primitive.ObjectID) (models.Message, error) {
	return s.findAndUpdateMessage(ctx, id, bson.M{"$pull": bson.M{"reactions": bson.M{"user": user}}})
}

func (s *Store) findAndUpdateMessage(ctx context.Context, id primitive.ObjectID, update any) (models.Message, error) {
	var m models.Message
	err := s.messages.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return models.Message{}, notFound(err)
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, matchID primitive.ObjectID, skip, limit int) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.messages.Find(ctx, bson.M{"match": matchID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Message
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
