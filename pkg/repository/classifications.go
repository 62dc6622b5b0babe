package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

type classificationDocument struct {
	LookupKey string `bson:"lookup_key"`
}

// ClassificationRepository reads and writes city classification results.
// Documents are keyed by lookup_key, one per normalized city/state pair.
type ClassificationRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	log        logger.Logger
}

func NewClassificationRepository(db *mongo.Database, timeout time.Duration, log logger.Logger) *ClassificationRepository {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Noop()
	}
	return &ClassificationRepository{
		collection: db.Collection(CollectionClassifications),
		timeout:    timeout,
		log:        log,
	}
}

// ExistingLookupKeys implements classify.ResultStore. It returns the
// subset of keys that already have a stored classification.
func (r *ClassificationRepository) ExistingLookupKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	if len(keys) == 0 {
		return map[string]struct{}{}, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	projection := options.Find().SetProjection(bson.M{"lookup_key": 1})
	cursor, err := r.collection.Find(opCtx, bson.M{"lookup_key": bson.M{"$in": keys}}, projection)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing classifications: %w", err)
	}
	defer cursor.Close(opCtx)

	existing := make(map[string]struct{})
	for cursor.Next(opCtx) {
		var doc classificationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode classification: %w", err)
		}
		existing[doc.LookupKey] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classifications: %w", err)
	}
	return existing, nil
}

// EnsureIndexes creates the unique lookup_key index used by the
// classification writers.
func (r *ClassificationRepository) EnsureIndexes(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(opCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lookup_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create classification index: %w", err)
	}
	return nil
}
