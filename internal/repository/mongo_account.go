package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepository implements domain.AccountRepository. Account
// records are keyed by identity; an absent document means the identity
// has never purchased and reads as expiry 0.
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new account repository
func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection("accounts"),
	}
}

func (r *MongoAccountRepository) GetExpiry(ctx context.Context, identity string) (uint64, error) {
	var doc struct {
		ExpiresAt int64 `bson:"expires_at"`
	}
	if err := r.collection.FindOne(ctx, bson.M{"_id": identity}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return uint64(doc.ExpiresAt), nil
}

func (r *MongoAccountRepository) SetExpiry(ctx context.Context, identity string, expiresAt uint64) error {
	update := bson.M{
		"$set": bson.M{
			"expires_at": int64(expiresAt),
			"updated_at": time.Now().UTC(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": identity}, update, opts); err != nil {
		return fmt.Errorf("failed to set account expiry: %w", err)
	}
	return nil
}
