package services

import (
	"context"
	"fmt"

	"goride/pkg/push"
	"goride/pkg/sms"

	"github.com/sirupsen/logrus"
)

// OpsAlertService is the ops notification fan-out's out-of-band half
// (§2.16): a dashboard websocket feed only reaches an operator who has
// it open, so a push alert to the on-call mobile app and an SMS page
// cover campaign events and gate exhaustion when nobody is watching.
// Either channel may be nil, in which case that alert is a no-op —
// both are optional deployment-time integrations, not hard
// dependencies of the dispatch path.
type OpsAlertService struct {
	pushProvider push.PushProvider
	pushTopic    string
	smsProvider  sms.SMSProvider
	onCallPhone  string
	logger       *logrus.Logger
}

func NewOpsAlertService(pushProvider push.PushProvider, pushTopic string, smsProvider sms.SMSProvider, onCallPhone string, logger *logrus.Logger) *OpsAlertService {
	return &OpsAlertService{
		pushProvider: pushProvider,
		pushTopic:    pushTopic,
		smsProvider:  smsProvider,
		onCallPhone:  onCallPhone,
		logger:       logger,
	}
}

// NotifyCampaignPaused alerts on-call that a campaign paused because
// the concurrency gate stayed exhausted for the full poll budget
// (§4.9 step 2).
func (o *OpsAlertService) NotifyCampaignPaused(ctx context.Context, campaignID string) {
	o.push(ctx, "Campaign paused", fmt.Sprintf("campaign %s paused: gate exhausted", campaignID))
}

// NotifyCampaignFailed alerts on-call that a campaign worker exited on
// an unrecoverable error (§4.9).
func (o *OpsAlertService) NotifyCampaignFailed(ctx context.Context, campaignID string, reason string) {
	o.push(ctx, "Campaign failed", fmt.Sprintf("campaign %s failed: %s", campaignID, reason))
}

// NotifyOrphanCleared alerts on-call that the Orphan Detector reclaimed
// a campaign whose worker stopped heartbeating (§4.10).
func (o *OpsAlertService) NotifyOrphanCleared(ctx context.Context, campaignID string, previousWorker string) {
	o.push(ctx, "Campaign orphaned", fmt.Sprintf("campaign %s: worker %s stopped heartbeating, ownership cleared", campaignID, previousWorker))
}

// NotifyGateExhausted pages on-call by SMS when the *global* concurrency
// limit, not just one client's, is what's blocking dispatch — a
// capacity problem that affects every client, not a single noisy
// tenant (§4.2).
func (o *OpsAlertService) NotifyGateExhausted(ctx context.Context, globalCount, globalMax int64) {
	if o.smsProvider == nil || o.onCallPhone == "" {
		return
	}

	msg := fmt.Sprintf("Global call gate exhausted: %d/%d concurrent calls in use", globalCount, globalMax)
	if _, err := o.smsProvider.SendSMS(ctx, &sms.SMSRequest{To: o.onCallPhone, Message: msg}); err != nil {
		o.logger.WithError(err).Warn("ops alert: failed to send gate-exhaustion SMS")
	}
}

func (o *OpsAlertService) push(ctx context.Context, title, body string) {
	if o.pushProvider == nil {
		return
	}

	req := &push.NotificationRequest{Topic: o.pushTopic, Title: title, Body: body}
	if _, err := o.pushProvider.SendNotification(ctx, req); err != nil {
		o.logger.WithError(err).Warn("ops alert: failed to send push notification")
	}
}
