package services

import (
	"context"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"

	"github.com/sirupsen/logrus"
)

// CampaignManager launches one CampaignWorker goroutine per running
// campaign within this process and keeps at most one live goroutine per
// campaignId locally. Multiple processes running a CampaignManager each
// race to claim the same campaigns; the CAS lease in
// CampaignRepository.ClaimOwnership is what actually arbitrates across
// processes (§5: "many parallel tasks across processes").
type CampaignManager struct {
	campaigns    interfaces.CampaignRepository
	newWorker    func(campaignID string) *CampaignWorker
	pollInterval time.Duration
	logger       *logrus.Logger
	alerts       *OpsAlertService

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewCampaignManager(
	campaigns interfaces.CampaignRepository,
	newWorker func(campaignID string) *CampaignWorker,
	pollInterval time.Duration,
	logger *logrus.Logger,
) *CampaignManager {
	return &CampaignManager{
		campaigns:    campaigns,
		newWorker:    newWorker,
		pollInterval: pollInterval,
		logger:       logger,
		running:      make(map[string]context.CancelFunc),
	}
}

// WithOpsAlerts wires an on-call alerter in; nil keeps worker-failure
// events silent, matching every existing construction site and test.
func (m *CampaignManager) WithOpsAlerts(alerts *OpsAlertService) *CampaignManager {
	m.alerts = alerts
	return m
}

// Launch starts a worker for campaignID in the background if one isn't
// already running locally. Safe to call repeatedly (e.g. right after
// the Campaign Management API creates or resumes a campaign).
func (m *CampaignManager) Launch(ctx context.Context, campaignID string) {
	m.mu.Lock()
	if _, exists := m.running[campaignID]; exists {
		m.mu.Unlock()
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	m.running[campaignID] = cancel
	m.mu.Unlock()

	worker := m.newWorker(campaignID)

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.running, campaignID)
			m.mu.Unlock()
			cancel()
		}()

		if err := worker.Run(workerCtx, campaignID); err != nil {
			m.logger.WithError(err).WithField("campaignId", campaignID).Error("campaign manager: worker exited with error")
			if m.alerts != nil {
				m.alerts.NotifyCampaignFailed(workerCtx, campaignID, err.Error())
			}
		}
	}()
}

// Stop cancels the local goroutine for campaignID, if running. Used by
// the pause API to react immediately instead of waiting for the
// cooperative status check between contacts.
func (m *CampaignManager) Stop(campaignID string) {
	m.mu.Lock()
	cancel, exists := m.running[campaignID]
	m.mu.Unlock()
	if exists {
		cancel()
	}
}

// RunDiscoveryLoop periodically re-launches any campaign this process
// doesn't already have a local goroutine for — covering campaigns
// started via the API on another node, or resumed after a pause.
func (m *CampaignManager) RunDiscoveryLoop(ctx context.Context, discover func(context.Context) ([]*models.Campaign, error)) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			campaigns, err := discover(ctx)
			if err != nil {
				m.logger.WithError(err).Error("campaign manager: discovery failed")
				continue
			}
			for _, c := range campaigns {
				m.Launch(ctx, c.CampaignID)
			}
		}
	}
}
