package database

import (
	"context"
	"errors"
	"time"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) InsertMatch(ctx context.Context, m models.Match) error {
	_, err := s.matches.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicateRecord
	}
	return err
}

func (s *Store) GetMatch(ctx context.Context, id primitive.ObjectID) (models.Match, error) {
	var m models.Match
	if err := s.matches.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.Match{}, notFound(err)
	}
	return m, nil
}

func (s *Store) FindMatchesByPair(ctx context.Context, pairKey string) ([]models.Match, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.matches.Find(ctx, bson.M{"pairKey": pairKey}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Match
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) TransitionMatch(ctx context.Context, id primitive.ObjectID, from []models.MatchStatus, to models.MatchStatus, by primitive.ObjectID, at time.Time) (models.Match, bool, error) {
	set := bson.M{"status": to, "updatedAt": at}
	switch to {
	case models.MatchUnmatched:
		set["unmatchedBy"], set["unmatchedAt"] = by, at
	case models.MatchBlocked:
		set["blockedBy"], set["blockedAt"] = by, at
	}

	var m models.Match
	err := s.matches.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, err := s.GetMatch(ctx, id)
		return current, false, err
	}
	if err != nil {
		return models.Match{}, false, err
	}
	return m, true, nil
}

func (s *Store) ListMatchesForUser(ctx context.Context, user primitive.ObjectID, status models.MatchStatus, skip, limit int) ([]models.Match, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastActivityAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.matches.Find(ctx, bson.M{"users": user, "status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Match
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) NextSequence(ctx context.Context, id primitive.ObjectID) (int64, error) {
	var m struct {
		Seq int64 `bson:"seq"`
	}
	err := s.matches.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.MatchActive},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"seq": 1}),
	).Decode(&m)
	if err != nil {
		return 0, notFound(err)
	}
	return m.Seq, nil
}

func (s *Store) IncrementMessageCount(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.matches.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"messageCount": 1},
		"$set": bson.M{"isConversationStarted": true, "updatedAt": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

// RecordLastMessage only writes when no snapshot exists or the stored one
// has a lower sequence, so a late write never replaces a newer message.
func (s *Store) RecordLastMessage(ctx context.Context, id primitive.ObjectID, lm models.LastMessage) (bool, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"lastMessage": nil},
			bson.M{"lastMessage.seq": bson.M{"$lt": lm.Seq}},
		},
	}
	update := bson.M{
		"$set": bson.M{"lastMessage": lm},
		"$max": bson.M{"lastActivityAt": lm.Timestamp},
	}
	res, err := s.matches.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, exists(ctx, s.matches, id)
	}
	return true, nil
}

func (s *Store) IncrementUnread(ctx context.Context, id, user primitive.ObjectID) (bool, error) {
	return s.updateUnread(ctx, id, user, bson.M{"$inc": bson.M{"unreadCount." + user.Hex(): 1}})
}

func (s *Store) SetUnread(ctx context.Context, id, user primitive.ObjectID, n int) (bool, error) {
	return s.updateUnread(ctx, id, user, bson.M{"$set": bson.M{"unreadCount." + user.Hex(): n}})
}

// updateUnread only touches matches that list user as a member.
func (s *Store) updateUnread(ctx context.Context, id, user primitive.ObjectID, update bson.M) (bool, error) {
	res, err := s.matches.UpdateOne(ctx, bson.M{"_id": id, "users": user}, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, exists(ctx, s.matches, id)
	}
	return true, nil
}
