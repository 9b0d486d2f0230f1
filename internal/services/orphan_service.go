package services

import (
	"context"
	"time"

	"goride/internal/config"
	"goride/internal/repositories/interfaces"

	"github.com/sirupsen/logrus"
)

// OrphanService is the Orphan Detector (§4.10): a periodic scan that
// clears ownership of campaigns whose worker stopped heartbeating,
// leaving currentIndex untouched so the next claimant resumes exactly
// where the dead worker left off.
type OrphanService struct {
	campaigns interfaces.CampaignRepository
	cfg       *config.CampaignConfig
	logger    *logrus.Logger
	alerts    *OpsAlertService
}

func NewOrphanService(campaigns interfaces.CampaignRepository, cfg *config.CampaignConfig, logger *logrus.Logger) *OrphanService {
	return &OrphanService{campaigns: campaigns, cfg: cfg, logger: logger}
}

// WithOpsAlerts wires an on-call alerter in; nil keeps orphan-clearing
// events silent, matching every existing construction site and test.
func (o *OrphanService) WithOpsAlerts(alerts *OpsAlertService) *OrphanService {
	o.alerts = alerts
	return o
}

// ScanOnce finds and clears orphaned campaigns, returning how many were
// cleared.
func (o *OrphanService) ScanOnce(ctx context.Context) (int, error) {
	staleBefore := time.Now().Add(-o.cfg.OrphanThreshold)

	orphaned, err := o.campaigns.FindOrphaned(ctx, staleBefore)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, campaign := range orphaned {
		if err := o.campaigns.ClearOwnership(ctx, campaign.CampaignID); err != nil {
			o.logger.WithError(err).WithField("campaignId", campaign.CampaignID).
				Error("orphan detector: failed to clear ownership")
			continue
		}
		o.logger.WithFields(logrus.Fields{
			"campaignId":     campaign.CampaignID,
			"previousWorker": campaign.ContainerID,
			"currentIndex":   campaign.CurrentIndex,
		}).Warn("orphan detector: cleared stale campaign ownership")
		if o.alerts != nil {
			o.alerts.NotifyOrphanCleared(ctx, campaign.CampaignID, campaign.ContainerID)
		}
		cleared++
	}

	return cleared, nil
}

// RunPeriodic blocks, scanning on OrphanScanInterval until ctx is
// canceled. Launched as a goroutine from main.
func (o *OrphanService) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.OrphanScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.ScanOnce(ctx); err != nil {
				o.logger.WithError(err).Error("orphan detector: scan failed")
			}
		}
	}
}
