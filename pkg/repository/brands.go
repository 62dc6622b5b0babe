// Package repository implements MongoDB-backed data access for brands,
// orders and city classification results.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/ingest"
	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

const (
	CollectionBrands          = "brands"
	CollectionOrders          = "orders"
	CollectionClassifications = "city_classifications"
)

type brandDocument struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	ShopDomain  string `bson:"shop_domain"`
	AccessToken string `bson:"access_token"`
}

// BrandRepository reads brand documents, including the stored platform
// credentials the historical sync needs.
type BrandRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	log        logger.Logger
}

func NewBrandRepository(db *mongo.Database, timeout time.Duration, log logger.Logger) *BrandRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Noop()
	}
	return &BrandRepository{
		collection: db.Collection(CollectionBrands),
		timeout:    timeout,
		log:        log,
	}
}

// Brand implements ingest.BrandDirectory.
func (r *BrandRepository) Brand(ctx context.Context, brandID string) (*ingest.Brand, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc brandDocument
	err := r.collection.FindOne(opCtx, bson.M{"_id": brandID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: brand %q", ingest.ErrNotFound, brandID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load brand %q: %w", brandID, err)
	}

	return &ingest.Brand{
		ID:          doc.ID,
		ShopDomain:  doc.ShopDomain,
		AccessToken: doc.AccessToken,
	}, nil
}
