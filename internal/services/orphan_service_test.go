package services

import (
	"context"
	"testing"
	"time"

	"goride/internal/config"
	"goride/internal/models"
)

// TestOrphanServiceClearsStaleOwnershipPreservingCursor exercises §4.10:
// a campaign whose worker stopped heartbeating gets its ownership
// cleared, but currentIndex is untouched so the next claimant resumes
// exactly where the dead worker left off.
func TestOrphanServiceClearsStaleOwnershipPreservingCursor(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	cfg := &config.CampaignConfig{OrphanThreshold: time.Minute}
	orphans := NewOrphanService(campaigns, cfg, discardLogger())

	campaign := newRunningCampaign("camp-1")
	campaign.ContainerID = "dead-worker"
	campaign.Heartbeat = time.Now().Add(-5 * time.Minute)
	campaign.CurrentIndex = 42
	campaigns.Create(context.Background(), campaign)

	cleared, err := orphans.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 campaign cleared, got %d", cleared)
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.ContainerID != "" {
		t.Fatalf("expected ownership cleared, got %q", final.ContainerID)
	}
	if final.CurrentIndex != 42 {
		t.Fatalf("expected cursor preserved at 42, got %d", final.CurrentIndex)
	}
}

// TestOrphanServiceLeavesFreshHeartbeatAlone confirms a campaign whose
// worker is still actively heartbeating is left untouched.
func TestOrphanServiceLeavesFreshHeartbeatAlone(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	cfg := &config.CampaignConfig{OrphanThreshold: time.Minute}
	orphans := NewOrphanService(campaigns, cfg, discardLogger())

	campaign := newRunningCampaign("camp-1")
	campaign.ContainerID = "live-worker"
	campaign.Heartbeat = time.Now()
	campaigns.Create(context.Background(), campaign)

	cleared, err := orphans.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared != 0 {
		t.Fatalf("expected 0 campaigns cleared, got %d", cleared)
	}

	final, _ := campaigns.Get(context.Background(), "camp-1")
	if final.ContainerID != "live-worker" {
		t.Fatal("expected a fresh heartbeat to be left alone")
	}
}

func TestOrphanServiceIgnoresNonRunningCampaigns(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	cfg := &config.CampaignConfig{OrphanThreshold: time.Minute}
	orphans := NewOrphanService(campaigns, cfg, discardLogger())

	campaign := newRunningCampaign("camp-1")
	campaign.Status = models.CampaignStatusPaused
	campaign.ContainerID = "dead-worker"
	campaign.Heartbeat = time.Now().Add(-5 * time.Minute)
	campaigns.Create(context.Background(), campaign)

	cleared, err := orphans.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared != 0 {
		t.Fatalf("expected a paused campaign to be left out of orphan recovery, got %d cleared", cleared)
	}
}

// TestOrphanServiceAlertsOnClear exercises §2.16: clearing a stale
// campaign pages on-call by push.
func TestOrphanServiceAlertsOnClear(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	cfg := &config.CampaignConfig{OrphanThreshold: time.Minute}
	pushProvider := &fakePushProvider{}
	alerts := NewOpsAlertService(pushProvider, "ops-on-call", nil, "", discardLogger())
	orphans := NewOrphanService(campaigns, cfg, discardLogger()).WithOpsAlerts(alerts)

	campaign := newRunningCampaign("camp-1")
	campaign.ContainerID = "dead-worker"
	campaign.Heartbeat = time.Now().Add(-5 * time.Minute)
	campaigns.Create(context.Background(), campaign)

	if _, err := orphans.ScanOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pushProvider.sent) != 1 {
		t.Fatalf("expected 1 push alert, got %d", len(pushProvider.sent))
	}
}

func TestOrphanServiceRunPeriodicStopsOnCancel(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	cfg := &config.CampaignConfig{OrphanThreshold: time.Minute, OrphanScanInterval: 5 * time.Millisecond}
	orphans := NewOrphanService(campaigns, cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orphans.RunPeriodic(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not exit after context cancellation")
	}
}
