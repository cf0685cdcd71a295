// Package database implements the engine's stores on MongoDB.
package database

import (
	"context"
	"errors"
	"log"
	"time"

	"spark/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client

// ConnectMongo connects and pings, retrying a few times before giving up.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		client, err := connectOnce(ctx, uri)
		if err == nil {
			Client = client
			return client, nil
		}
		lastErr = err
		log.Printf("❌ MongoDB connection attempt %d failed: %v", attempt, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, lastErr
}

func connectOnce(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func DisconnectMongo() error {
	if Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Client.Disconnect(ctx); err != nil {
		return err
	}

	log.Println("Disconnected from MongoDB")
	return nil
}

// Store holds the collections the engine uses. It satisfies the user, match
// and message stores of package services and the push subscription store.
type Store struct {
	db            *mongo.Database
	users         *mongo.Collection
	matches       *mongo.Collection
	messages      *mongo.Collection
	subscriptions *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:            db,
		users:         db.Collection("users"),
		matches:       db.Collection("matches"),
		messages:      db.Collection("messages"),
		subscriptions: db.Collection("subscriptions"),
	}
}

// EnsureIndexes creates the indexes queries and invariants rely on. The
// partial unique index on pairKey is what makes match creation exactly-once.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "gender", Value: 1}, {Key: "age", Value: 1}}},
		},
		s.matches: {
			{
				Keys: bson.D{{Key: "pairKey", Value: 1}},
				Options: options.Index().
					SetName("active_pair_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "status", Value: "active"}}),
			},
			{Keys: bson.D{{Key: "users", Value: 1}, {Key: "status", Value: 1}, {Key: "lastActivityAt", Value: -1}}},
		},
		s.messages: {
			{Keys: bson.D{{Key: "match", Value: 1}, {Key: "seq", Value: -1}}},
			{Keys: bson.D{{Key: "match", Value: 1}, {Key: "receiver", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "status", Value: 1}}},
		},
		s.subscriptions: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, idx := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// notFound maps the driver's no-documents error to the services sentinel.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return services.ErrRecordNotFound
	}
	return err
}

// exists distinguishes "filter did not match" from "document missing" after
// a conditional update matched nothing.
func exists(ctx context.Context, coll *mongo.Collection, id any) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}
