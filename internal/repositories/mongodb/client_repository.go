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

type clientRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

// NewClientRepository builds the Client repository. Reads are
// cache-aside through Redis since concurrency-cap and credential lookups
// happen on every dispatch (§4.3, §4.5), grounded on the teacher's
// call repository cache-aside pattern.
func NewClientRepository(db *database.MongoDB, redisCache *cache.RedisCache) interfaces.ClientRepository {
	return &clientRepository{
		collection: db.Collection("clients"),
		cache:      redisCache,
	}
}

func (r *clientRepository) Get(ctx context.Context, clientID string) (*models.Client, error) {
	cacheKey := fmt.Sprintf("client:%s", clientID)
	var client models.Client
	if r.cache != nil {
		if err := r.cache.Get(ctx, cacheKey, &client); err == nil {
			return &client, nil
		}
	}

	err := r.collection.FindOne(ctx, bson.M{"_id": clientID}).Decode(&client)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client %s: %w", clientID, err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, client, 5*time.Minute)
	}

	return &client, nil
}

func (r *clientRepository) Upsert(ctx context.Context, client *models.Client) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": client.ClientID}, client, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", client.ClientID, err)
	}

	if r.cache != nil {
		r.cache.Delete(ctx, fmt.Sprintf("client:%s", client.ClientID))
	}

	return nil
}
