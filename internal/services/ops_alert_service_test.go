package services

import (
	"context"
	"testing"

	"goride/pkg/push"
	"goride/pkg/sms"
)

type fakePushProvider struct {
	sent []*push.NotificationRequest
}

func (f *fakePushProvider) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	f.sent = append(f.sent, request)
	return &push.NotificationResponse{MessageID: "fake", Success: true}, nil
}

type fakeSMSProvider struct {
	sent []*sms.SMSRequest
}

func (f *fakeSMSProvider) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	f.sent = append(f.sent, request)
	return &sms.SMSResponse{MessageID: "fake", Status: "sent"}, nil
}

func TestOpsAlertServiceNotifiesCampaignEventsViaPush(t *testing.T) {
	pushProvider := &fakePushProvider{}
	alerts := NewOpsAlertService(pushProvider, "ops-on-call", nil, "", discardLogger())

	alerts.NotifyCampaignPaused(context.Background(), "camp-1")
	alerts.NotifyCampaignFailed(context.Background(), "camp-2", "mongo unreachable")
	alerts.NotifyOrphanCleared(context.Background(), "camp-3", "worker-a")

	if len(pushProvider.sent) != 3 {
		t.Fatalf("expected 3 push notifications, got %d", len(pushProvider.sent))
	}
	for _, req := range pushProvider.sent {
		if req.Topic != "ops-on-call" {
			t.Fatalf("expected topic ops-on-call, got %s", req.Topic)
		}
	}
}

func TestOpsAlertServiceNotifiesGateExhaustionViaSMS(t *testing.T) {
	smsProvider := &fakeSMSProvider{}
	alerts := NewOpsAlertService(nil, "", smsProvider, "+15550000000", discardLogger())

	alerts.NotifyGateExhausted(context.Background(), 100, 100)

	if len(smsProvider.sent) != 1 {
		t.Fatalf("expected 1 SMS, got %d", len(smsProvider.sent))
	}
	if smsProvider.sent[0].To != "+15550000000" {
		t.Fatalf("expected SMS to on-call number, got %s", smsProvider.sent[0].To)
	}
}

func TestOpsAlertServiceNoChannelsIsNoOp(t *testing.T) {
	alerts := NewOpsAlertService(nil, "", nil, "", discardLogger())

	alerts.NotifyCampaignPaused(context.Background(), "camp-1")
	alerts.NotifyGateExhausted(context.Background(), 100, 100)
}

func TestOpsAlertServiceGateExhaustionWithoutOnCallNumberIsNoOp(t *testing.T) {
	smsProvider := &fakeSMSProvider{}
	alerts := NewOpsAlertService(nil, "", smsProvider, "", discardLogger())

	alerts.NotifyGateExhausted(context.Background(), 100, 100)

	if len(smsProvider.sent) != 0 {
		t.Fatalf("expected no SMS without an on-call number, got %d", len(smsProvider.sent))
	}
}
