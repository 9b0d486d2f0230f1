package services

import (
	"context"
	"fmt"
	"time"

	"goride/internal/config"
	"goride/internal/contactstore"
	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"

	"github.com/sirupsen/logrus"
)

// CampaignWorker drives one Campaign document forward, contact by
// contact, through the Call Pipeline (§4.9). Each running campaign has
// at most one live worker goroutine; ownership is established and
// refreshed via the CAS lease in CampaignRepository.ClaimOwnership.
type CampaignWorker struct {
	workerID    string
	campaigns   interfaces.CampaignRepository
	activeCalls interfaces.ActiveCallRepository
	contacts    contactstore.ContactStore
	pipeline    *PipelineService
	cfg         *config.CampaignConfig
	logger      *logrus.Logger
	alerts      *OpsAlertService
}

func NewCampaignWorker(
	workerID string,
	campaigns interfaces.CampaignRepository,
	activeCalls interfaces.ActiveCallRepository,
	contacts contactstore.ContactStore,
	pipeline *PipelineService,
	cfg *config.CampaignConfig,
	logger *logrus.Logger,
) *CampaignWorker {
	return &CampaignWorker{
		workerID:    workerID,
		campaigns:   campaigns,
		activeCalls: activeCalls,
		contacts:    contacts,
		pipeline:    pipeline,
		cfg:         cfg,
		logger:      logger,
	}
}

// WithOpsAlerts wires an on-call alerter in; nil keeps pause events
// silent, matching every existing construction site and test.
func (w *CampaignWorker) WithOpsAlerts(alerts *OpsAlertService) *CampaignWorker {
	w.alerts = alerts
	return w
}

// Run implements the §4.9 loop. It returns once the campaign is no
// longer running under this worker's ownership (paused, completed,
// failed, lease lost, or ctx canceled).
func (w *CampaignWorker) Run(ctx context.Context, campaignID string) error {
	claimed, err := w.campaigns.ClaimOwnership(ctx, campaignID, w.workerID, w.cfg.OrphanThreshold)
	if err != nil {
		return fmt.Errorf("campaign worker: failed to claim campaign %s: %w", campaignID, err)
	}
	if !claimed {
		w.logger.WithField("campaignId", campaignID).Debug("campaign worker: lost the claim race, backing off")
		return nil
	}

	campaign, err := w.campaigns.Get(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("campaign worker: failed to load campaign %s: %w", campaignID, err)
	}
	if campaign == nil {
		return fmt.Errorf("campaign worker: campaign %s vanished after claim", campaignID)
	}

	rows, err := w.contacts.Load(ctx, campaign.ListID)
	if err != nil {
		w.logger.WithError(err).WithField("campaignId", campaignID).Error("campaign worker: contact list unreadable, failing campaign")
		_ = w.campaigns.SetStatus(ctx, campaignID, models.CampaignStatusFailed)
		return nil
	}

	log := w.logger.WithFields(logrus.Fields{"campaignId": campaignID, "workerId": w.workerID})
	log.Info("campaign worker: claimed campaign, resuming loop")

	lastHeartbeat := time.Now()
	processedSinceHeartbeat := 0

	for idx := campaign.CurrentIndex; idx < len(rows); idx++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current, err := w.campaigns.Get(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("campaign worker: failed to re-read campaign %s: %w", campaignID, err)
		}
		if current == nil || current.Status != models.CampaignStatusRunning || current.ContainerID != w.workerID {
			// Pause (cooperative, P7) or lease lost: stop between
			// contacts, letting the in-flight contact (already
			// committed) be the only extra dispatch.
			log.Info("campaign worker: campaign no longer running under this worker, exiting")
			return nil
		}

		contact := rows[idx]

		if phone := contact.Phone(); !utils.IsValidPhone(phone) {
			log.WithField("contactIndex", idx).Warn("campaign worker: skipping contact with unusable phone number")
		} else {
			contact["phone"] = utils.NormalizePhone(phone)
			params := w.buildCallParams(campaign, contact, idx)

			result := w.pipeline.ProcessSingleCall(ctx, params)

			if result.ShouldPauseCampaign {
				log.Warn("campaign worker: gate exhausted, pausing campaign")
				if w.alerts != nil {
					w.alerts.NotifyCampaignPaused(ctx, campaignID)
				}
				return w.campaigns.SetStatus(ctx, campaignID, models.CampaignStatusPaused)
			}
		}

		// §4.9 step 3: cursor advances whether the contact succeeded or
		// failed — a failed ACL row still counts the contact processed.
		if err := w.campaigns.AdvanceCursor(ctx, campaignID, w.workerID); err != nil {
			return fmt.Errorf("campaign worker: failed to advance cursor for %s: %w", campaignID, err)
		}
		processedSinceHeartbeat++

		if time.Since(lastHeartbeat) >= w.cfg.HeartbeatPeriod || processedSinceHeartbeat >= w.cfg.HeartbeatEveryN {
			if err := w.campaigns.Heartbeat(ctx, campaignID, w.workerID); err != nil {
				log.WithError(err).Warn("campaign worker: heartbeat failed")
			}
			lastHeartbeat = time.Now()
			processedSinceHeartbeat = 0
		}
	}

	log.Info("campaign worker: reached end of contact list, marking completed")
	return w.campaigns.SetStatus(ctx, campaignID, models.CampaignStatusCompleted)
}

func (w *CampaignWorker) buildCallParams(campaign *models.Campaign, contact models.ContactRow, index int) *models.CallParams {
	campaignID := campaign.CampaignID
	return &models.CallParams{
		ClientID:       campaign.ClientID,
		CampaignID:     &campaignID,
		ListID:         campaign.ListID,
		From:           campaign.FromNumber,
		To:             contact.Phone(),
		Provider:       campaign.Provider,
		WssURL:         campaign.WssURL,
		ContactIndex:   index,
		SequenceNumber: index,
		ContactData:    contact,
		ContextFlags:   campaign.ContextFlags,
	}
}
