package services

import (
	"context"
	"testing"
	"time"

	"goride/internal/config"
	"goride/internal/contactstore"
	"goride/internal/models"
	"goride/internal/providers"
)

func newTestWorker(t *testing.T, workerID string, campaigns *fakeCampaignRepo, activeCalls *fakeActiveCallRepo, contacts contactstore.ContactStore, pipeline *PipelineService) *CampaignWorker {
	t.Helper()
	cfg := &config.CampaignConfig{
		HeartbeatPeriod: time.Hour,
		HeartbeatEveryN: 1000,
		OrphanThreshold: 2 * time.Minute,
	}
	return NewCampaignWorker(workerID, campaigns, activeCalls, contacts, pipeline, cfg, discardLogger())
}

func newRunningCampaign(id string) *models.Campaign {
	return &models.Campaign{
		CampaignID: id,
		ClientID:   "client-1",
		ListID:     "list-1",
		FromNumber: "+15551111111",
		WssURL:     "wss://bot.example.com/stream",
		Provider:   models.ProviderPlivo,
		Status:     models.CampaignStatusRunning,
	}
}

func newTestPipelineForWorker(activeCalls *fakeActiveCallRepo, plivoResult *providers.OutboundCallResult) *PipelineService {
	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	plivo := &fakeProvider{name: models.ProviderPlivo, result: plivoResult}
	twilio := &fakeProvider{name: models.ProviderTwilio}

	gateCfg := &config.GateConfig{GlobalMaxConcurrentCalls: 1000, DefaultClientMaxConcurrent: 1000, MaxPollAttempts: 1, PollInterval: 0}
	warmupCfg := &config.WarmupConfig{Enabled: false}
	telephonyCfg := &config.TelephonyConfig{BaseURL: "http://localhost:8080", DefaultProvider: "plivo"}
	campaignCfg := &config.CampaignConfig{}

	gate := NewGateService(activeCalls, clients, gateCfg, discardLogger())
	warmup := NewWarmupService(warmupCfg, discardLogger())
	router := NewRouterService(clients, mappings, plivo, twilio, telephonyCfg, discardLogger())
	sweeper := NewSweeperService(activeCalls, campaignCfg, discardLogger())

	return NewPipelineService(activeCalls, gate, warmup, router, sweeper, telephonyCfg, discardLogger())
}

// TestCampaignWorkerCursorAdvancesMonotonically exercises P4: a single
// Run call drives the cursor forward one contact at a time until the
// list is exhausted, advancing by exactly the row count and never
// regressing.
func TestCampaignWorkerCursorAdvancesMonotonically(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	activeCalls := newFakeActiveCallRepo()
	contacts := &fakeContactStore{rows: []models.ContactRow{
		{"phone": "+15552222222"},
		{"phone": "+15553333333"},
		{"phone": "+15554444444"},
	}}

	campaign := newRunningCampaign("camp-1")
	campaigns.Create(context.Background(), campaign)

	pipeline := newTestPipelineForWorker(activeCalls, &providers.OutboundCallResult{ProviderCallID: "req-shared"})
	plivoAdapter := pipeline.router.plivo.(*fakeProvider)

	worker := newTestWorker(t, "worker-1", campaigns, activeCalls, contacts, pipeline)

	if err := worker.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plivoAdapter.calls) != 3 {
		t.Fatalf("expected all 3 contacts dispatched to the plivo adapter, got %d", len(plivoAdapter.calls))
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.Status != models.CampaignStatusCompleted {
		t.Fatalf("expected campaign completed after exhausting the contact list, got %s", final.Status)
	}
	if final.CurrentIndex != 3 {
		t.Fatalf("expected cursor at 3 after 3 contacts, got %d", final.CurrentIndex)
	}
	if final.ProcessedContacts != 3 {
		t.Fatalf("expected 3 processed contacts, got %d", final.ProcessedContacts)
	}
}

// TestCampaignWorkerAlertsOnPause exercises §2.16: a campaign paused
// because the gate is exhausted pages on-call by push, on top of its
// own status transition to paused.
func TestCampaignWorkerAlertsOnPause(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	activeCalls := newFakeActiveCallRepo()
	contacts := &fakeContactStore{rows: []models.ContactRow{{"phone": "+15552222222"}}}

	campaign := newRunningCampaign("camp-1")
	campaigns.Create(context.Background(), campaign)

	activeCalls.Insert(context.Background(), &models.ActiveCall{
		CallUUID: "blocker", ClientID: "other", Status: models.CallStatusOngoing,
	})

	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	plivo := &fakeProvider{name: models.ProviderPlivo}
	twilio := &fakeProvider{name: models.ProviderTwilio}
	gateCfg := &config.GateConfig{GlobalMaxConcurrentCalls: 1, DefaultClientMaxConcurrent: 10, MaxPollAttempts: 1, PollInterval: 0}
	warmupCfg := &config.WarmupConfig{Enabled: false}
	telephonyCfg := &config.TelephonyConfig{BaseURL: "http://localhost:8080", DefaultProvider: "plivo"}
	campaignCfg := &config.CampaignConfig{}

	gate := NewGateService(activeCalls, clients, gateCfg, discardLogger())
	warmup := NewWarmupService(warmupCfg, discardLogger())
	router := NewRouterService(clients, mappings, plivo, twilio, telephonyCfg, discardLogger())
	sweeper := NewSweeperService(activeCalls, campaignCfg, discardLogger())
	pipeline := NewPipelineService(activeCalls, gate, warmup, router, sweeper, telephonyCfg, discardLogger())

	pushProvider := &fakePushProvider{}
	alerts := NewOpsAlertService(pushProvider, "ops-on-call", nil, "", discardLogger())
	cfg := &config.CampaignConfig{HeartbeatPeriod: time.Hour, HeartbeatEveryN: 1000, OrphanThreshold: 2 * time.Minute}
	worker := NewCampaignWorker("worker-1", campaigns, activeCalls, contacts, pipeline, cfg, discardLogger()).WithOpsAlerts(alerts)

	if err := worker.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.Status != models.CampaignStatusPaused {
		t.Fatalf("expected campaign paused when the gate is exhausted, got %s", final.Status)
	}
	if len(pushProvider.sent) != 1 {
		t.Fatalf("expected 1 push alert on pause, got %d", len(pushProvider.sent))
	}
}

// TestCampaignWorkerClaimFailsWhenAlreadyOwnedAndFresh exercises the CAS
// lease: a second worker cannot claim a campaign whose heartbeat is
// still fresh.
func TestCampaignWorkerClaimFailsWhenAlreadyOwnedAndFresh(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	activeCalls := newFakeActiveCallRepo()
	contacts := &fakeContactStore{rows: []models.ContactRow{{"phone": "+15552222222"}}}

	campaign := newRunningCampaign("camp-1")
	campaign.ContainerID = "worker-1"
	campaign.Heartbeat = time.Now()
	campaigns.Create(context.Background(), campaign)

	pipeline := newTestPipelineForWorker(activeCalls, &providers.OutboundCallResult{ProviderCallID: "req-1"})
	worker := newTestWorker(t, "worker-2", campaigns, activeCalls, contacts, pipeline)

	if err := worker.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.ContainerID != "worker-1" {
		t.Fatalf("expected ownership to remain with worker-1, got %s", final.ContainerID)
	}
	if final.CurrentIndex != 0 {
		t.Fatal("expected the losing worker to never advance the cursor")
	}
}

// pauseAfterFirstCallProvider pauses the owning campaign the moment its
// first call lands, simulating a pause request arriving while the
// worker is mid-loop, then lets later calls through normally (they
// shouldn't happen if pause propagation works).
type pauseAfterFirstCallProvider struct {
	*fakeProvider
	campaigns  *fakeCampaignRepo
	campaignID string
	fired      bool
}

func (p *pauseAfterFirstCallProvider) MakeCall(ctx context.Context, req providers.OutboundCallRequest, webhooks providers.WebhookURLs) (*providers.OutboundCallResult, error) {
	result, err := p.fakeProvider.MakeCall(ctx, req, webhooks)
	if !p.fired {
		p.fired = true
		p.campaigns.SetStatus(ctx, p.campaignID, models.CampaignStatusPaused)
	}
	return result, err
}

// TestCampaignWorkerStopsWhenPausedMidRun exercises P7: cooperative
// pause propagation stops the loop between contacts, leaving the
// already-dispatched contact's progress intact and never touching the
// remaining rows.
func TestCampaignWorkerStopsWhenPausedMidRun(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	activeCalls := newFakeActiveCallRepo()
	contacts := &fakeContactStore{rows: []models.ContactRow{
		{"phone": "+15552222222"},
		{"phone": "+15553333333"},
		{"phone": "+15554444444"},
	}}

	campaign := newRunningCampaign("camp-1")
	campaigns.Create(context.Background(), campaign)

	pipeline := newTestPipelineForWorker(activeCalls, &providers.OutboundCallResult{ProviderCallID: "req-1"})
	basePlivo := pipeline.router.plivo.(*fakeProvider)
	pausing := &pauseAfterFirstCallProvider{fakeProvider: basePlivo, campaigns: campaigns, campaignID: "camp-1"}
	pipeline.router.plivo = pausing

	worker := newTestWorker(t, "worker-1", campaigns, activeCalls, contacts, pipeline)

	if err := worker.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(basePlivo.calls) != 1 {
		t.Fatalf("expected exactly 1 contact dispatched before the pause took effect, got %d", len(basePlivo.calls))
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.Status != models.CampaignStatusPaused {
		t.Fatalf("expected campaign to remain paused, got %s", final.Status)
	}
	if final.CurrentIndex != 1 {
		t.Fatalf("expected cursor to stop at 1 after the single dispatched contact, got %d", final.CurrentIndex)
	}
}

// TestCampaignWorkerSkipsUnusableContactButAdvancesCursor confirms a
// contact with no dialable phone is skipped (no dispatch) while the
// cursor still advances.
func TestCampaignWorkerSkipsUnusableContactButAdvancesCursor(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	activeCalls := newFakeActiveCallRepo()
	contacts := &fakeContactStore{rows: []models.ContactRow{
		{"phone": "not-a-phone-number"},
	}}

	campaign := newRunningCampaign("camp-1")
	campaigns.Create(context.Background(), campaign)

	pipeline := newTestPipelineForWorker(activeCalls, &providers.OutboundCallResult{ProviderCallID: "req-1"})
	worker := newTestWorker(t, "worker-1", campaigns, activeCalls, contacts, pipeline)

	if err := worker.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.CurrentIndex != 1 {
		t.Fatalf("expected cursor to advance past the unusable contact, got %d", final.CurrentIndex)
	}
	if final.Status != models.CampaignStatusCompleted {
		t.Fatalf("expected campaign completed, got %s", final.Status)
	}
}
