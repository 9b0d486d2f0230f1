package mongodb

import (
	"context"
	"fmt"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type campaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository builds the Campaign repository (§3 Campaign,
// §4.9/§4.10), grounded on the teacher's call repository collection and
// index setup.
func NewCampaignRepository(db *database.MongoDB) interfaces.CampaignRepository {
	coll := db.Collection("campaigns")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "heartbeat", Value: 1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
	})

	return &campaignRepository{collection: coll}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	campaign.Heartbeat = now
	campaign.LastActivity = now

	_, err := r.collection.InsertOne(ctx, campaign)
	if err != nil {
		return fmt.Errorf("failed to create campaign %s: %w", campaign.CampaignID, err)
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": campaignID}).Decode(&campaign)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}
	return &campaign, nil
}

func (r *campaignRepository) ClaimOwnership(ctx context.Context, campaignID, workerID string, staleAfter time.Duration) (bool, error) {
	staleBefore := time.Now().Add(-staleAfter)

	// CAS lease (§4.9 step 1): only claim a campaign that is running and
	// either unowned or whose last heartbeat predates staleBefore. The
	// filter itself is the compare; the update is the swap.
	filter := bson.M{
		"_id":    campaignID,
		"status": models.CampaignStatusRunning,
		"$or": []bson.M{
			{"container_id": bson.M{"$in": []interface{}{"", nil}}},
			{"heartbeat": bson.M{"$lt": staleBefore}},
		},
	}

	now := time.Now()
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"container_id": workerID,
		"heartbeat":    now,
		"updated_at":   now,
	}})
	if err != nil {
		return false, fmt.Errorf("failed to claim campaign %s: %w", campaignID, err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *campaignRepository) AdvanceCursor(ctx context.Context, campaignID, workerID string) error {
	// C2: the containerId guard means a worker that lost its lease (or
	// was never the owner) silently fails to advance rather than racing
	// the real owner's cursor forward.
	filter := bson.M{"_id": campaignID, "container_id": workerID}
	update := bson.M{
		"$inc": bson.M{"current_index": 1, "processed_contacts": 1},
		"$set": bson.M{"last_activity": time.Now(), "updated_at": time.Now()},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to advance cursor for campaign %s: %w", campaignID, err)
	}
	return nil
}

func (r *campaignRepository) Heartbeat(ctx context.Context, campaignID, workerID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": campaignID, "container_id": workerID},
		bson.M{"$set": bson.M{"heartbeat": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to heartbeat campaign %s: %w", campaignID, err)
	}
	return nil
}

func (r *campaignRepository) SetStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": campaignID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set status for campaign %s: %w", campaignID, err)
	}
	return nil
}

func (r *campaignRepository) ClearOwnership(ctx context.Context, campaignID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": campaignID},
		bson.M{"$set": bson.M{"container_id": "", "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear ownership for campaign %s: %w", campaignID, err)
	}
	return nil
}

func (r *campaignRepository) FindOrphaned(ctx context.Context, staleBefore time.Time) ([]*models.Campaign, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":       models.CampaignStatusRunning,
		"container_id": bson.M{"$nin": []interface{}{"", nil}},
		"heartbeat":    bson.M{"$lt": staleBefore},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode orphaned campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ListRunning(ctx context.Context) ([]*models.Campaign, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.CampaignStatusRunning})
	if err != nil {
		return nil, fmt.Errorf("failed to list running campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode running campaigns: %w", err)
	}
	return campaigns, nil
}
