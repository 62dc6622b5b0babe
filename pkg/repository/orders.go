package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/classify"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// OrderRepository reads shipping destinations out of stored orders.
type OrderRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	log        logger.Logger
}

func NewOrderRepository(db *mongo.Database, timeout time.Duration, log logger.Logger) *OrderRepository {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Noop()
	}
	return &OrderRepository{
		collection: db.Collection(CollectionOrders),
		timeout:    timeout,
		log:        log,
	}
}

type cityStateGroup struct {
	ID struct {
		City  string `bson:"city"`
		State string `bson:"state"`
	} `bson:"_id"`
}

// DistinctCityStates implements classify.CandidateSource. It groups
// orders created inside [from, to) by shipping city and province,
// skipping orders without a shipping address.
func (r *OrderRepository) DistinctCityStates(ctx context.Context, from, to time.Time) ([]classify.CityState, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"created_at": bson.M{"$gte": from, "$lt": to},
			"shipping_address.city":     bson.M{"$nin": bson.A{nil, ""}},
			"shipping_address.province": bson.M{"$nin": bson.A{nil, ""}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"city":  "$shipping_address.city",
				"state": "$shipping_address.province",
			},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.state", Value: 1},
			{Key: "_id.city", Value: 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order destinations: %w", err)
	}
	defer cursor.Close(opCtx)

	var pairs []classify.CityState
	for cursor.Next(opCtx) {
		var group cityStateGroup
		if err := cursor.Decode(&group); err != nil {
			return nil, fmt.Errorf("failed to decode destination group: %w", err)
		}
		city := strings.TrimSpace(group.ID.City)
		state := strings.TrimSpace(group.ID.State)
		if city == "" || state == "" {
			continue
		}
		pairs = append(pairs, classify.CityState{City: city, State: state})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate destination groups: %w", err)
	}

	r.log.Debug("collected order destinations",
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
		"pairs", len(pairs))
	return pairs, nil
}
