package interfaces

import (
	"context"

	"goride/internal/models"
)

// ClientRepository resolves per-tenant concurrency caps and provider
// credentials (§3 Client).
type ClientRepository interface {
	Get(ctx context.Context, clientID string) (*models.Client, error)
	Upsert(ctx context.Context, client *models.Client) error
}

// PhoneProviderRepository resolves the "from" number to a provider
// (§3 Phone-Provider Mapping).
type PhoneProviderRepository interface {
	Get(ctx context.Context, phoneNumber string) (*models.PhoneProviderMapping, error)
	Upsert(ctx context.Context, mapping *models.PhoneProviderMapping) error
}
