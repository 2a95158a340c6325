package repository

import (
	"context"
	"fmt"

	"github.com/hanifmaliki/subledger/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// paramsDocID keys the one-document collection holding the ledger's
// global parameters.
const paramsDocID = "ledger_params"

// MongoParamsRepository implements domain.ParamsRepository
type MongoParamsRepository struct {
	collection *mongo.Collection
}

// NewMongoParamsRepository creates a new params repository
func NewMongoParamsRepository(db *mongo.Database) *MongoParamsRepository {
	return &MongoParamsRepository{
		collection: db.Collection("params"),
	}
}

func (r *MongoParamsRepository) Load(ctx context.Context) (*domain.Params, error) {
	var doc struct {
		ID     string        `bson:"_id"`
		Params domain.Params `bson:"params"`
	}
	if err := r.collection.FindOne(ctx, bson.M{"_id": paramsDocID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load params: %w", err)
	}
	return &doc.Params, nil
}

func (r *MongoParamsRepository) Save(ctx context.Context, params *domain.Params) error {
	doc := bson.M{
		"_id":    paramsDocID,
		"params": params,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": paramsDocID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save params: %w", err)
	}
	return nil
}
