package interfaces

import (
	"context"
	"time"

	"goride/internal/models"
)

// CampaignRepository persists Campaign documents and their
// resume-cursor state (§3 Campaign, §4.9, §4.10).
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	Get(ctx context.Context, campaignID string) (*models.Campaign, error)

	// ClaimOwnership performs the CAS lease of §4.9 step 1: it sets
	// containerId=workerID and refreshes the heartbeat only if the
	// campaign is running and either unowned or its heartbeat is older
	// than staleAfter. Returns false if the claim lost the race.
	ClaimOwnership(ctx context.Context, campaignID, workerID string, staleAfter time.Duration) (claimed bool, err error)

	// AdvanceCursor atomically increments currentIndex and
	// processedContacts by one contact (C2: only the owning worker may
	// call this — enforced by the containerId guard in the update
	// filter).
	AdvanceCursor(ctx context.Context, campaignID, workerID string) error

	Heartbeat(ctx context.Context, campaignID, workerID string) error

	SetStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error

	// ClearOwnership drops containerId without touching currentIndex
	// (§4.10 orphan recovery).
	ClearOwnership(ctx context.Context, campaignID string) error

	// FindOrphaned returns running campaigns whose heartbeat predates
	// the orphan threshold.
	FindOrphaned(ctx context.Context, staleBefore time.Time) ([]*models.Campaign, error)

	// ListRunning returns every campaign currently in the running state,
	// regardless of ownership, so a CampaignManager can discover work
	// started or resumed elsewhere.
	ListRunning(ctx context.Context) ([]*models.Campaign, error)
}
