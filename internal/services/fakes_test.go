package services

import (
	"context"
	"sync"
	"time"

	"goride/internal/models"
	"goride/internal/providers"
	"goride/internal/repositories/interfaces"
)

// fakeActiveCallRepo is an in-memory ActiveCallRepository good enough to
// exercise gate counting, sweeper expiry, and webhook transitions
// without a real Mongo instance.
type fakeActiveCallRepo struct {
	mu    sync.Mutex
	calls map[string]*models.ActiveCall
}

func newFakeActiveCallRepo() *fakeActiveCallRepo {
	return &fakeActiveCallRepo{calls: make(map[string]*models.ActiveCall)}
}

func (f *fakeActiveCallRepo) Insert(ctx context.Context, call *models.ActiveCall) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.calls[call.CallUUID]; exists {
		return false, nil
	}
	cp := *call
	f.calls[call.CallUUID] = &cp
	return true, nil
}

func (f *fakeActiveCallRepo) UpdateAfterStart(ctx context.Context, callUUID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call, ok := f.calls[callUUID]
	if !ok {
		return nil
	}
	if sid, ok := fields["twilio_call_sid"].(string); ok {
		call.TwilioCallSID = sid
	}
	return nil
}

func (f *fakeActiveCallRepo) Transition(ctx context.Context, callUUID string, newStatus models.CallStatus, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call, ok := f.calls[callUUID]
	if !ok {
		return false, nil
	}
	if call.Status.IsTerminal() {
		// P3: terminal rows are sticky, no-op success.
		return true, nil
	}
	call.Status = newStatus
	call.StatusTimestamp = time.Now()
	applyFields(call, fields)
	return true, nil
}

func applyFields(call *models.ActiveCall, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "end_time":
			if t, ok := v.(time.Time); ok {
				call.EndTime = &t
			}
		case "duration":
			if d, ok := v.(int); ok {
				call.Duration = d
			}
		case "end_reason":
			if s, ok := v.(string); ok {
				call.EndReason = s
			}
		case "failure_reason":
			if r, ok := v.(models.FailureReason); ok {
				call.FailureReason = &r
			}
		}
	}
}

func (f *fakeActiveCallRepo) Get(ctx context.Context, callUUID string) (*models.ActiveCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call, ok := f.calls[callUUID]
	if !ok {
		return nil, nil
	}
	cp := *call
	return &cp, nil
}

func (f *fakeActiveCallRepo) GetByTwilioSID(ctx context.Context, twilioCallSID string) (*models.ActiveCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call.TwilioCallSID == twilioCallSID {
			cp := *call
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeActiveCallRepo) CountActive(ctx context.Context, filter interfaces.CountFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, call := range f.calls {
		if !call.Status.IsActive() {
			continue
		}
		if filter.ClientID != "" && call.ClientID != filter.ClientID {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeActiveCallRepo) BulkExpire(ctx context.Context, thresholds interfaces.ExpireThresholds) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired int64
	for _, call := range f.calls {
		var max time.Duration
		switch call.Status {
		case models.CallStatusProcessed:
			max = thresholds.Processed
		case models.CallStatusRinging:
			max = thresholds.Ringing
		case models.CallStatusOngoing:
			max = thresholds.Ongoing
		default:
			continue
		}
		if max <= 0 {
			// Same as the Mongo repository: a zero threshold disables
			// expiry for that status.
			continue
		}
		if thresholds.Now.Sub(call.StatusTimestamp) >= max {
			call.Status = models.CallStatusFailed
			call.StatusTimestamp = thresholds.Now
			reason := models.FailureWebhookTimeout
			if thresholds.OneTimeCleanup {
				reason = models.FailureOneTimeCleanupTimeout
			}
			call.FailureReason = &reason
			expired++
		}
	}
	return expired, nil
}

func (f *fakeActiveCallRepo) CountByCampaign(ctx context.Context, campaignID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, call := range f.calls {
		if call.CampaignID != nil && *call.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

// fakeClientRepo is an in-memory ClientRepository.
type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]*models.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]*models.Client)}
}

func (f *fakeClientRepo) Get(ctx context.Context, clientID string) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[clientID], nil
}

func (f *fakeClientRepo) Upsert(ctx context.Context, client *models.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[client.ClientID] = client
	return nil
}

// fakePhoneProviderRepo is an in-memory PhoneProviderRepository.
type fakePhoneProviderRepo struct {
	mu       sync.Mutex
	mappings map[string]*models.PhoneProviderMapping
}

func newFakePhoneProviderRepo() *fakePhoneProviderRepo {
	return &fakePhoneProviderRepo{mappings: make(map[string]*models.PhoneProviderMapping)}
}

func (f *fakePhoneProviderRepo) Get(ctx context.Context, phoneNumber string) (*models.PhoneProviderMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mappings[phoneNumber], nil
}

func (f *fakePhoneProviderRepo) Upsert(ctx context.Context, mapping *models.PhoneProviderMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings[mapping.PhoneNumber] = mapping
	return nil
}

// fakeCampaignRepo is an in-memory CampaignRepository that enforces the
// same CAS ownership rule ClaimOwnership documents, so worker/manager
// tests exercise the real contention logic instead of a stub that
// always succeeds.
type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	getErr    error // when set, Get fails after a successful ClaimOwnership
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[string]*models.Campaign)}
}

func (f *fakeCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *campaign
	f.campaigns[campaign.CampaignID] = &cp
	return nil
}

func (f *fakeCampaignRepo) Get(ctx context.Context, campaignID string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) ClaimOwnership(ctx context.Context, campaignID, workerID string, staleAfter time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.Status != models.CampaignStatusRunning {
		return false, nil
	}
	if c.ContainerID != "" && c.ContainerID != workerID && time.Since(c.Heartbeat) < staleAfter {
		return false, nil
	}
	c.ContainerID = workerID
	c.Heartbeat = time.Now()
	return true, nil
}

func (f *fakeCampaignRepo) AdvanceCursor(ctx context.Context, campaignID, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.ContainerID != workerID {
		return nil
	}
	c.CurrentIndex++
	c.ProcessedContacts++
	return nil
}

func (f *fakeCampaignRepo) Heartbeat(ctx context.Context, campaignID, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.ContainerID != workerID {
		return nil
	}
	c.Heartbeat = time.Now()
	return nil
}

func (f *fakeCampaignRepo) SetStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) ClearOwnership(ctx context.Context, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil
	}
	c.ContainerID = ""
	return nil
}

func (f *fakeCampaignRepo) FindOrphaned(ctx context.Context, staleBefore time.Time) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusRunning && c.ContainerID != "" && c.Heartbeat.Before(staleBefore) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) ListRunning(ctx context.Context) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusRunning {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeContactStore returns a fixed set of rows regardless of listID.
type fakeContactStore struct {
	rows []models.ContactRow
	err  error
}

func (f *fakeContactStore) Load(ctx context.Context, listID string) ([]models.ContactRow, error) {
	return f.rows, f.err
}

// fakeProvider is a scriptable providers.CallProvider.
type fakeProvider struct {
	name       models.Provider
	result     *providers.OutboundCallResult
	err        error
	validateErr error
	calls      []providers.OutboundCallRequest
	mu         sync.Mutex
}

func (f *fakeProvider) Name() models.Provider { return f.name }

func (f *fakeProvider) MakeCall(ctx context.Context, req providers.OutboundCallRequest, webhooks providers.WebhookURLs) (*providers.OutboundCallResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) ValidateConfig(creds providers.Credentials) error {
	return f.validateErr
}

func (f *fakeProvider) MapStatus(providerStatus string) models.CallStatus {
	return models.CallStatusOngoing
}
