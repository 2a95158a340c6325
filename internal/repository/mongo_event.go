package repository

import (
	"context"
	"fmt"

	"github.com/hanifmaliki/subledger/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEventRepository implements domain.EventRepository as an append-only
// log. Event IDs are ULIDs, so _id order matches emission order within a
// single instance; queries still sort by the At timestamp.
type MongoEventRepository struct {
	collection *mongo.Collection
}

// NewMongoEventRepository creates a new event repository
func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{
		collection: db.Collection("events"),
	}
}

func (r *MongoEventRepository) Append(ctx context.Context, event *domain.Event) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *MongoEventRepository) List(ctx context.Context, limit int64) ([]*domain.Event, error) {
	return r.find(ctx, bson.M{}, limit)
}

func (r *MongoEventRepository) ListByIdentity(ctx context.Context, identity string, limit int64) ([]*domain.Event, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"payer": identity},
			{"beneficiary": identity},
			{"identity": identity},
		},
	}
	return r.find(ctx, filter, limit)
}

func (r *MongoEventRepository) find(ctx context.Context, filter bson.M, limit int64) ([]*domain.Event, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.Event
	for cursor.Next(ctx) {
		var event domain.Event
		if err := cursor.Decode(&event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, cursor.Err()
}
