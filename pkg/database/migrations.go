package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
	Down        func(*mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
}

func NewMigrator(db *mongo.Database) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
	}
}

func (m *Migrator) Up() error {
	// Create migrations collection if it doesn't exist
	err := m.createMigrationsCollection()
	if err != nil {
		return err
	}

	// Get current version
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return err
	}

	// Run migrations
	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			log.Printf("Running migration %d: %s", migration.Version, migration.Description)

			err := migration.Up(m.db)
			if err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			err = m.updateVersion(migration.Version)
			if err != nil {
				return fmt.Errorf("failed to update migration version: %w", err)
			}

			log.Printf("Migration %d completed successfully", migration.Version)
		}
	}

	return nil
}

func (m *Migrator) Down(targetVersion int) error {
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version <= currentVersion && migration.Version > targetVersion {
			log.Printf("Reverting migration %d: %s", migration.Version, migration.Description)

			err := migration.Down(m.db)
			if err != nil {
				return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
			}

			previousVersion := targetVersion
			if i > 0 {
				previousVersion = m.migrations[i-1].Version
			}

			err = m.updateVersion(previousVersion)
			if err != nil {
				return fmt.Errorf("failed to update migration version: %w", err)
			}

			log.Printf("Migration %d reverted successfully", migration.Version)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collections, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}

	for _, name := range collections {
		if name == "migrations" {
			return nil
		}
	}

	return m.db.CreateCollection(ctx, "migrations")
}

func (m *Migrator) getCurrentVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection("migrations").FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(version int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.db.Collection("migrations").ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{"version", version}, {"updated_at", time.Now()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create activeCalls collection with indexes",
			Up: func(db *mongo.Database) error {
				return createActiveCallsIndexes(db)
			},
			Down: func(db *mongo.Database) error {
				return db.Collection("activeCalls").Drop(context.Background())
			},
		},
		{
			Version:     2,
			Description: "Create campaigns collection with indexes",
			Up: func(db *mongo.Database) error {
				return createCampaignsIndexes(db)
			},
			Down: func(db *mongo.Database) error {
				return db.Collection("campaigns").Drop(context.Background())
			},
		},
		{
			Version:     3,
			Description: "Create clients collection with indexes",
			Up: func(db *mongo.Database) error {
				return createClientsIndexes(db)
			},
			Down: func(db *mongo.Database) error {
				return db.Collection("clients").Drop(context.Background())
			},
		},
		{
			Version:     4,
			Description: "Create phoneProviderMappings collection with indexes",
			Up: func(db *mongo.Database) error {
				return createPhoneProviderMappingsIndexes(db)
			},
			Down: func(db *mongo.Database) error {
				return db.Collection("phoneProviderMappings").Drop(context.Background())
			},
		},
	}
}

// createActiveCallsIndexes backs ActiveCallRepository's lookups: the
// sweeper's active-status + stale-timestamp scan (P5), webhook ingress's
// Twilio SID lookup, and the campaign worker's per-campaign count.
func createActiveCallsIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("activeCalls")

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{"status", 1}, {"status_timestamp", 1}},
		},
		{
			Keys:    bson.D{{"twilio_call_sid", 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{"campaign_id", 1}, {"status", 1}},
		},
		{
			Keys: bson.D{{"client_id", 1}, {"status", 1}},
		},
		{
			Keys: bson.D{{"created_at", -1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// createCampaignsIndexes backs CampaignRepository.ListRunning (the
// manager's discovery poll, §4.9) and the orphan detector's stale-lease
// scan (§4.10).
func createCampaignsIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("campaigns")

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{"status", 1}},
		},
		{
			Keys: bson.D{{"status", 1}, {"heartbeat", 1}},
		},
		{
			Keys: bson.D{{"client_id", 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// createClientsIndexes backs ClientRepository's cache-aside reads; the
// _id is already the clientId, so no secondary index is required beyond
// the default _id index.
func createClientsIndexes(db *mongo.Database) error {
	return nil
}

// createPhoneProviderMappingsIndexes backs PhoneProviderRepository's
// cache-aside reads; the _id is already the phone number.
func createPhoneProviderMappingsIndexes(db *mongo.Database) error {
	return nil
}
