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

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return err
}

type nearResult struct {
	models.User `bson:",inline"`
	Distance    float64 `bson:"distance"`
}

// Near runs $geoNear against the 2dsphere index with the query's filters
// pushed into the stage.
func (s *Store) Near(ctx context.Context, q services.NearQuery) ([]models.Candidate, error) {
	filter := bson.M{"isActive": true}
	if len(q.Exclude) > 0 {
		filter["_id"] = bson.M{"$nin": q.Exclude}
	}
	age := bson.M{}
	if q.MinAge > 0 {
		age["$gte"] = q.MinAge
	}
	if q.MaxAge > 0 {
		age["$lte"] = q.MaxAge
	}
	if len(age) > 0 {
		filter["age"] = age
	}
	if q.Gender != "" && q.Gender != models.GenderEveryone {
		filter["gender"] = q.Gender
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: q.Point.Coordinates},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: q.MaxMeters},
			{Key: "spherical", Value: true},
			{Key: "query", Value: filter},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "distance", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}

	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []nearResult
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Candidate{User: r.User, DistanceMeters: r.Distance})
	}
	return out, nil
}

// ApplySwipe rewrites all three swipe lists in a single pipeline update:
// target is filtered out of each list, then appended to the decision's list.
func (s *Store) ApplySwipe(ctx context.Context, source, target primitive.ObjectID, d models.Decision, at time.Time) error {
	lists := []string{
		models.DecisionLike.Field(),
		models.DecisionPass.Field(),
		models.DecisionSuperLike.Field(),
	}
	cleared := bson.D{}
	for _, field := range lists {
		cleared = append(cleared, bson.E{Key: field, Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}},
			{Key: "as", Value: "s"},
			{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$s.user", target}}}},
		}}}})
	}
	entry := bson.D{{Key: "user", Value: target}, {Key: "swipedAt", Value: at}}

	update := mongo.Pipeline{
		{{Key: "$set", Value: cleared}},
		{{Key: "$set", Value: bson.D{
			{Key: d.Field(), Value: bson.D{{Key: "$concatArrays", Value: bson.A{"$" + d.Field(), bson.A{entry}}}}},
			{Key: "lastActive", Value: at},
		}}},
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": source}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}
