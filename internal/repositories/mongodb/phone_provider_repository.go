package mongodb

import (
	"context"
	"fmt"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/pkg/cache"
	"goride/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type phoneProviderRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

// NewPhoneProviderRepository builds the Phone-Provider Mapping repository
// (§3 Phone-Provider Mapping, §4.5 router).
func NewPhoneProviderRepository(db *database.MongoDB, redisCache *cache.RedisCache) interfaces.PhoneProviderRepository {
	return &phoneProviderRepository{
		collection: db.Collection("phoneProviderMappings"),
		cache:      redisCache,
	}
}

func (r *phoneProviderRepository) Get(ctx context.Context, phoneNumber string) (*models.PhoneProviderMapping, error) {
	cacheKey := fmt.Sprintf("phone_provider:%s", phoneNumber)
	var mapping models.PhoneProviderMapping
	if r.cache != nil {
		if err := r.cache.Get(ctx, cacheKey, &mapping); err == nil {
			return &mapping, nil
		}
	}

	err := r.collection.FindOne(ctx, bson.M{"_id": phoneNumber}).Decode(&mapping)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get phone provider mapping for %s: %w", phoneNumber, err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, mapping, 10*time.Minute)
	}

	return &mapping, nil
}

func (r *phoneProviderRepository) Upsert(ctx context.Context, mapping *models.PhoneProviderMapping) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": mapping.PhoneNumber}, mapping, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert phone provider mapping for %s: %w", mapping.PhoneNumber, err)
	}

	if r.cache != nil {
		r.cache.Delete(ctx, fmt.Sprintf("phone_provider:%s", mapping.PhoneNumber))
	}

	return nil
}
