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

type activeCallRepository struct {
	collection *mongo.Collection
}

// NewActiveCallRepository builds the Active-Call Ledger repository and
// ensures its required indexes exist (§4.1: by (status, clientId), by
// status, by startTime, unique sparse on callUUID — which here is the
// document _id and therefore already unique and indexed — and by
// campaignId).
func NewActiveCallRepository(db *database.MongoDB) interfaces.ActiveCallRepository {
	coll := db.Collection("activeCalls")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "campaign_id", Value: 1}}},
	})

	return &activeCallRepository{collection: coll}
}

func (r *activeCallRepository) Insert(ctx context.Context, call *models.ActiveCall) (bool, error) {
	_, err := r.collection.InsertOne(ctx, call)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// I6: a re-insert on a duplicate callUUID is coalesced to
			// success rather than surfaced as an error.
			return false, nil
		}
		return false, fmt.Errorf("failed to insert active call: %w", err)
	}
	return true, nil
}

func (r *activeCallRepository) UpdateAfterStart(ctx context.Context, callUUID string, fields map[string]interface{}) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": callUUID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return fmt.Errorf("failed to update active call %s: %w", callUUID, err)
	}
	return nil
}

func (r *activeCallRepository) Transition(ctx context.Context, callUUID string, newStatus models.CallStatus, fields map[string]interface{}) (bool, error) {
	set := bson.M{"status": newStatus, "status_timestamp": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	// P3: terminal states are sticky. A terminal row only matches this
	// filter if it is not already terminal, so a second terminal update
	// is a no-op success rather than overwriting endTime/duration again.
	filter := bson.M{
		"_id": callUUID,
		"status": bson.M{"$nin": []models.CallStatus{
			models.CallStatusEnded, models.CallStatusFailed, models.CallStatusTimeout,
		}},
	}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to transition active call %s: %w", callUUID, err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// Distinguish "unknown callUUID" from "already terminal" so callers
	// (webhook ingress) can log/ignore unknown IDs without creating
	// ghost rows, while still reporting success for idempotent retries.
	existing, err := r.Get(ctx, callUUID)
	if err != nil {
		return false, nil
	}
	return existing != nil, nil
}

func (r *activeCallRepository) Get(ctx context.Context, callUUID string) (*models.ActiveCall, error) {
	var call models.ActiveCall
	err := r.collection.FindOne(ctx, bson.M{"_id": callUUID}).Decode(&call)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active call %s: %w", callUUID, err)
	}
	return &call, nil
}

func (r *activeCallRepository) GetByTwilioSID(ctx context.Context, twilioCallSID string) (*models.ActiveCall, error) {
	var call models.ActiveCall
	err := r.collection.FindOne(ctx, bson.M{"twilio_call_sid": twilioCallSID}).Decode(&call)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active call by twilio sid %s: %w", twilioCallSID, err)
	}
	return &call, nil
}

func (r *activeCallRepository) CountActive(ctx context.Context, filter interfaces.CountFilter) (int64, error) {
	query := bson.M{"status": bson.M{"$in": models.ActiveStatuses()}}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}

	count, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count active calls: %w", err)
	}
	return count, nil
}

func (r *activeCallRepository) CountByCampaign(ctx context.Context, campaignID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		return 0, fmt.Errorf("failed to count active calls for campaign %s: %w", campaignID, err)
	}
	return count, nil
}

func (r *activeCallRepository) BulkExpire(ctx context.Context, t interfaces.ExpireThresholds) (int64, error) {
	now := t.Now
	if now.IsZero() {
		now = time.Now()
	}

	reason := models.FailureWebhookTimeout
	if t.OneTimeCleanup {
		reason = models.FailureOneTimeCleanupTimeout
	}

	var total int64
	for status, threshold := range map[models.CallStatus]time.Duration{
		models.CallStatusProcessed: t.Processed,
		models.CallStatusRinging:   t.Ringing,
		models.CallStatusOngoing:   t.Ongoing,
	} {
		if threshold <= 0 {
			continue
		}
		cutoff := now.Add(-threshold)

		filter := bson.M{
			"status": status,
			"$or": []bson.M{
				{"status_timestamp": bson.M{"$lt": cutoff}},
			},
		}
		if t.OneTimeCleanup {
			// Tolerate rows lacking statusTimestamp by falling back to
			// startTime (§4.8 one-time cleanup variant).
			filter["$or"] = append(filter["$or"].([]bson.M),
				bson.M{
					"status_timestamp": bson.M{"$exists": false},
					"start_time":       bson.M{"$lt": cutoff},
				},
			)
		}

		res, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
			"status":           models.CallStatusFailed,
			"status_timestamp": now,
			"failure_reason":   reason,
			"failed_at":        now,
		}})
		if err != nil {
			return total, fmt.Errorf("failed to bulk expire %s calls: %w", status, err)
		}
		total += res.ModifiedCount
	}

	return total, nil
}
