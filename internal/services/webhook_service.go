package services

import (
	"context"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/pkg/websocket"

	"github.com/sirupsen/logrus"
)

// WebhookService is the transition logic behind Webhook Ingress (§4.7).
// HTTP-layer concerns (routing, request parsing) live in the handler;
// this service only knows how to turn a provider event into an ACL
// transition.
type WebhookService struct {
	activeCalls interfaces.ActiveCallRepository
	ops         *websocket.Handler
	logger      *logrus.Logger
}

// NewWebhookService wires an optional ops-dashboard broadcaster; pass
// nil to run without live call-event fan-out.
func NewWebhookService(activeCalls interfaces.ActiveCallRepository, ops *websocket.Handler, logger *logrus.Logger) *WebhookService {
	return &WebhookService{activeCalls: activeCalls, ops: ops, logger: logger}
}

// PlivoRing handles the ring webhook.
func (w *WebhookService) PlivoRing(ctx context.Context, callUUID string) error {
	return w.transition(ctx, callUUID, models.CallStatusRinging, nil)
}

// PlivoAnswer handles the answer webhook (Plivo's "in-progress" event
// arrives at the XML/answer endpoint, which is also the point where the
// downstream bot is connected).
func (w *WebhookService) PlivoAnswer(ctx context.Context, callUUID string) error {
	return w.transition(ctx, callUUID, models.CallStatusOngoing, nil)
}

// PlivoHangup handles the hangup webhook, setting endTime/duration/endReason.
func (w *WebhookService) PlivoHangup(ctx context.Context, callUUID string, durationSeconds int, endReason string) error {
	now := time.Now()
	return w.transition(ctx, callUUID, models.CallStatusEnded, map[string]interface{}{
		"end_time":   now,
		"duration":   durationSeconds,
		"end_reason": endReason,
	})
}

// TwilioStatusCallback multiplexes every Twilio event through the common
// status vocabulary (§4.7), resolving the row by CallSid rather than
// callUUID directly since Twilio only ever hands back its own SID.
func (w *WebhookService) TwilioStatusCallback(ctx context.Context, callSID string, mapped models.CallStatus, durationSeconds int) error {
	call, err := w.activeCalls.GetByTwilioSID(ctx, callSID)
	if err != nil {
		return err
	}
	if call == nil {
		w.logger.WithField("twilioCallSid", callSID).Warn("webhook: unknown twilio call sid, ignoring")
		return nil
	}

	fields := map[string]interface{}{}
	if mapped == models.CallStatusEnded {
		now := time.Now()
		fields["end_time"] = now
		fields["duration"] = durationSeconds
		fields["end_reason"] = "completed"
	}
	if mapped == models.CallStatusFailed {
		reason := models.FailureAPICallFailed
		fields["failure_reason"] = reason
	}

	return w.transition(ctx, call.CallUUID, mapped, fields)
}

func (w *WebhookService) transition(ctx context.Context, callUUID string, status models.CallStatus, fields map[string]interface{}) error {
	found, err := w.activeCalls.Transition(ctx, callUUID, status, fields)
	if err != nil {
		return err
	}
	if !found {
		// Unknown callUUID: logged and ignored, never creates a ghost
		// row (§4.7).
		w.logger.WithField("callUUID", callUUID).Warn("webhook: unknown callUUID, ignoring")
		return nil
	}

	w.broadcast(ctx, callUUID, status)
	return nil
}

// broadcast fans a transition out to any ops dashboard subscribed to
// the owning campaign's room. Best-effort: a lookup failure here never
// fails the webhook response.
func (w *WebhookService) broadcast(ctx context.Context, callUUID string, status models.CallStatus) {
	if w.ops == nil {
		return
	}
	call, err := w.activeCalls.Get(ctx, callUUID)
	if err != nil || call == nil || call.CampaignID == nil || *call.CampaignID == "" {
		return
	}
	w.ops.BroadcastCampaignEvent(*call.CampaignID, "call_status", map[string]interface{}{
		"callUUID": callUUID,
		"status":   string(status),
	})
}
