package services

import (
	"context"
	"testing"
	"time"

	"goride/internal/config"
	"goride/internal/models"
)

// blockingContactStore blocks Load until unblock is closed, or the
// context is canceled — used to hold a CampaignWorker mid-run so tests
// can observe CampaignManager's bookkeeping while a goroutine is still
// live.
type blockingContactStore struct {
	rows    []models.ContactRow
	unblock chan struct{}
}

func (b *blockingContactStore) Load(ctx context.Context, listID string) ([]models.ContactRow, error) {
	select {
	case <-b.unblock:
		return b.rows, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestManager(t *testing.T, campaigns *fakeCampaignRepo, newWorker func(string) *CampaignWorker) *CampaignManager {
	t.Helper()
	return NewCampaignManager(campaigns, newWorker, 5*time.Millisecond, discardLogger())
}

// TestCampaignManagerLaunchIsIdempotentLocally exercises the "at most
// one live goroutine per campaignId" invariant: a second Launch call
// while the first is still running must not start another worker.
func TestCampaignManagerLaunchIsIdempotentLocally(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.Create(context.Background(), newRunningCampaign("camp-1"))

	store := &blockingContactStore{unblock: make(chan struct{})}
	launches := 0
	newWorker := func(campaignID string) *CampaignWorker {
		launches++
		pipeline := newTestPipelineForWorker(newFakeActiveCallRepo(), nil)
		return newTestWorker(t, "worker-"+campaignID, campaigns, newFakeActiveCallRepo(), store, pipeline)
	}

	manager := newTestManager(t, campaigns, newWorker)

	manager.Launch(context.Background(), "camp-1")
	manager.Launch(context.Background(), "camp-1")
	manager.Launch(context.Background(), "camp-1")

	// Give the first goroutine a moment to register itself before we
	// inspect manager state.
	time.Sleep(10 * time.Millisecond)

	manager.mu.Lock()
	running := len(manager.running)
	manager.mu.Unlock()

	if running != 1 {
		t.Fatalf("expected exactly 1 locally-running goroutine, got %d", running)
	}
	if launches != 1 {
		t.Fatalf("expected newWorker to be called exactly once, got %d", launches)
	}

	close(store.unblock)
	time.Sleep(10 * time.Millisecond)
}

// TestCampaignManagerStopCancelsRunningWorker exercises Stop: it cancels
// the local goroutine's context immediately rather than waiting for the
// worker's own cooperative status check.
func TestCampaignManagerStopCancelsRunningWorker(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.Create(context.Background(), newRunningCampaign("camp-1"))

	store := &blockingContactStore{unblock: make(chan struct{})}
	newWorker := func(campaignID string) *CampaignWorker {
		pipeline := newTestPipelineForWorker(newFakeActiveCallRepo(), nil)
		return newTestWorker(t, "worker-1", campaigns, newFakeActiveCallRepo(), store, pipeline)
	}

	manager := newTestManager(t, campaigns, newWorker)
	manager.Launch(context.Background(), "camp-1")

	time.Sleep(10 * time.Millisecond)
	manager.Stop("camp-1")

	// Stop cancels the worker's context; blockingContactStore's Load
	// observes ctx.Done() and returns, letting the goroutine's cleanup
	// remove it from the running map.
	deadline := time.After(time.Second)
	for {
		manager.mu.Lock()
		_, stillRunning := manager.running["camp-1"]
		manager.mu.Unlock()
		if !stillRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected Stop to remove the campaign from the running set")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestCampaignManagerAlertsOnWorkerFailure exercises §2.16: a worker
// goroutine that exits with an error pages on-call by push.
func TestCampaignManagerAlertsOnWorkerFailure(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.Create(context.Background(), newRunningCampaign("camp-1"))

	pushProvider := &fakePushProvider{}
	alerts := NewOpsAlertService(pushProvider, "ops-on-call", nil, "", discardLogger())

	workerCfg := &config.CampaignConfig{HeartbeatPeriod: time.Hour, HeartbeatEveryN: 1000, OrphanThreshold: 2 * time.Minute}
	newWorker := func(campaignID string) *CampaignWorker {
		pipeline := newTestPipelineForWorker(newFakeActiveCallRepo(), nil)
		contacts := &fakeContactStore{rows: []models.ContactRow{{"phone": "+15552222222"}}}
		worker := NewCampaignWorker("worker-1", campaigns, newFakeActiveCallRepo(), contacts, pipeline, workerCfg, discardLogger())
		campaigns.getErr = context.DeadlineExceeded
		return worker
	}

	manager := NewCampaignManager(campaigns, newWorker, 5*time.Millisecond, discardLogger()).WithOpsAlerts(alerts)
	manager.Launch(context.Background(), "camp-1")

	deadline := time.After(time.Second)
	for len(pushProvider.sent) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected a push alert once the worker goroutine fails")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestCampaignManagerRunDiscoveryLoopLaunchesDiscoveredCampaigns
// confirms the discovery loop calls Launch for whatever discover
// reports, then exits cleanly on cancellation.
func TestCampaignManagerRunDiscoveryLoopLaunchesDiscoveredCampaigns(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.Create(context.Background(), newRunningCampaign("camp-1"))

	store := &fakeContactStore{rows: []models.ContactRow{}}
	launches := 0
	newWorker := func(campaignID string) *CampaignWorker {
		launches++
		pipeline := newTestPipelineForWorker(newFakeActiveCallRepo(), nil)
		return newTestWorker(t, "worker-1", campaigns, newFakeActiveCallRepo(), store, pipeline)
	}

	manager := newTestManager(t, campaigns, newWorker)

	discover := func(ctx context.Context) ([]*models.Campaign, error) {
		return []*models.Campaign{{CampaignID: "camp-1"}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.RunDiscoveryLoop(ctx, discover)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunDiscoveryLoop did not exit after context cancellation")
	}

	// Launch calls newWorker synchronously on the loop's goroutine, so
	// the close(done) above orders every increment before this read.
	if launches == 0 {
		t.Fatal("expected the discovery loop to launch the discovered campaign")
	}

	manager.mu.Lock()
	_, launched := manager.running["camp-1"]
	manager.mu.Unlock()
	_ = launched // worker may have already finished an empty contact list; absence isn't a failure here
}
