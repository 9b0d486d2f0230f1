package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/providers"
	"goride/internal/repositories/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PipelineService is the Call Pipeline (§4.6 processSingleCall): a fixed
// sequence of stages, each of which either advances the attempt or
// terminates it with a labeled failure.
type PipelineService struct {
	activeCalls interfaces.ActiveCallRepository
	gate        *GateService
	warmup      *WarmupService
	router      *RouterService
	sweeper     *SweeperService
	telephony   *config.TelephonyConfig
	logger      *logrus.Logger
}

func NewPipelineService(
	activeCalls interfaces.ActiveCallRepository,
	gate *GateService,
	warmup *WarmupService,
	router *RouterService,
	sweeper *SweeperService,
	telephony *config.TelephonyConfig,
	logger *logrus.Logger,
) *PipelineService {
	return &PipelineService{
		activeCalls: activeCalls,
		gate:        gate,
		warmup:      warmup,
		router:      router,
		sweeper:     sweeper,
		telephony:   telephony,
		logger:      logger,
	}
}

// ProcessSingleCall runs the full §4.6 pipeline for one contact.
func (p *PipelineService) ProcessSingleCall(ctx context.Context, params *models.CallParams) *models.DispatchResult {
	start := time.Now()

	// Stage 1: lazy sweep (§4.8) — keeps concurrency counts accurate
	// before the gate reads them.
	if _, err := p.sweeper.SweepOnce(ctx); err != nil {
		p.logger.WithError(err).Warn("pipeline: lazy sweep failed, continuing with dispatch")
	}

	// Stage 2: gate wait (§4.2).
	wait, err := p.gate.WaitForSlot(ctx, params.ClientID)
	if err != nil {
		p.logger.WithError(err).WithField("clientId", params.ClientID).Error("pipeline: gate wait errored")
	}
	if wait == nil || !wait.Success {
		return &models.DispatchResult{
			Success:             false,
			ShouldPauseCampaign: true,
			Stage:               "gate",
			Error:               "gate exhausted: no free slot within poll budget",
			ProcessingTime:      time.Since(start),
			WaitTime:            waitTimeOf(wait),
		}
	}

	// Stage 3: warmup (§4.3).
	warmupResult := p.warmup.Warm(ctx, params.WssURL)
	if !warmupResult.Success {
		callUUID := p.insertSyntheticFailure(ctx, params, models.FailureBotNotReady)
		return &models.DispatchResult{
			Success:        false,
			CallUUID:       callUUID,
			Stage:          "warmup",
			Error:          warmupResult.Error,
			ProcessingTime: time.Since(start),
			WaitTime:       wait.WaitTime,
			WarmupTime:     warmupResult.Duration,
		}
	}

	// Stage 4: param validation.
	if err := validateCallParams(params); err != nil {
		return &models.DispatchResult{
			Success:        false,
			Stage:          "validation",
			Error:          err.Error(),
			ProcessingTime: time.Since(start),
			WaitTime:       wait.WaitTime,
			WarmupTime:     warmupResult.Duration,
		}
	}

	// Stage 5 & 6: router dispatch + ACL insert.
	result := p.dispatch(ctx, params)
	result.ProcessingTime = time.Since(start)
	result.WaitTime = wait.WaitTime
	result.WarmupTime = warmupResult.Duration
	return result
}

func waitTimeOf(w *WaitResult) time.Duration {
	if w == nil {
		return 0
	}
	return w.WaitTime
}

func validateCallParams(params *models.CallParams) error {
	if params.ClientID == "" {
		return fmt.Errorf("missing clientId")
	}
	if params.From == "" || params.To == "" {
		return fmt.Errorf("missing from/to number")
	}
	if params.WssURL == "" {
		return fmt.Errorf("missing wssUrl")
	}
	if _, err := url.Parse(params.WssURL); err != nil {
		return fmt.Errorf("malformed wssUrl: %w", err)
	}
	if !strings.HasPrefix(params.From, "+") || !strings.HasPrefix(params.To, "+") {
		return fmt.Errorf("phone numbers must be in E.164 format")
	}
	return nil
}

// dispatch implements §4.6 stages 5-6.
func (p *PipelineService) dispatch(ctx context.Context, params *models.CallParams) *models.DispatchResult {
	provider := params.Provider
	if provider == "" {
		provider = p.resolveProviderName(ctx, params)
	}

	webhooks := p.webhooksFor(provider, params)

	req := providers.OutboundCallRequest{
		From:        params.From,
		To:          params.To,
		WssURL:      params.WssURL,
		ContactData: contactQueryParams(params),
	}

	var callUUID string
	if provider == models.ProviderTwilio {
		// Pre-reserve the UUID and insert the ACL row before the API
		// call so a status-callback racing ahead of the response still
		// finds its row (§8 scenario #2).
		callUUID = uuid.NewString()
		req.CallUUID = callUUID

		call := p.buildActiveCall(callUUID, provider, params)
		if _, err := p.activeCalls.Insert(ctx, call); err != nil {
			return &models.DispatchResult{Success: false, Stage: "acl_insert", Error: err.Error()}
		}
	}

	result, err := p.router.MakeCall(ctx, params, webhooks, req)
	if err != nil {
		failureReason := models.FailureAPICallFailed
		if adapterErr, ok := err.(*providers.AdapterError); ok && adapterErr.Stage == "api_exception" {
			failureReason = models.FailureAPIException
		}

		if callUUID != "" {
			// Pre-reserved Twilio row already exists; mark it failed
			// instead of inserting a second row.
			p.markFailed(ctx, callUUID, failureReason, err.Error())
		} else {
			callUUID = p.insertSyntheticFailure(ctx, params, failureReason)
		}

		return &models.DispatchResult{
			Success:  false,
			CallUUID: callUUID,
			Provider: provider,
			Stage:    "dispatch",
			Error:    err.Error(),
		}
	}

	if provider == models.ProviderTwilio {
		// Post-response enrichment only; the row already exists.
		_ = p.activeCalls.UpdateAfterStart(ctx, callUUID, map[string]interface{}{
			"twilio_call_sid": result.ProviderCallID,
		})
	} else {
		callUUID = result.ProviderCallID
		call := p.buildActiveCall(callUUID, provider, params)
		if _, err := p.activeCalls.Insert(ctx, call); err != nil {
			p.logger.WithError(err).WithField("callUUID", callUUID).Error("pipeline: failed to insert ACL row after successful dispatch")
		}
	}

	return &models.DispatchResult{
		Success:  true,
		CallUUID: callUUID,
		Provider: provider,
		CallID:   result.ProviderCallID,
	}
}

func (p *PipelineService) resolveProviderName(ctx context.Context, params *models.CallParams) models.Provider {
	return p.router.resolveProvider(ctx, params)
}

func (p *PipelineService) buildActiveCall(callUUID string, provider models.Provider, params *models.CallParams) *models.ActiveCall {
	now := time.Now()
	return &models.ActiveCall{
		CallUUID:        callUUID,
		ClientID:        params.ClientID,
		CampaignID:      params.CampaignID,
		From:            params.From,
		To:              params.To,
		Provider:        provider,
		Status:          models.CallStatusProcessed,
		StatusTimestamp: now,
		StartTime:       now,
		ContactIndex:    params.ContactIndex,
		SequenceNumber:  params.SequenceNumber,
		ContactData:     params.ContactData,
		ContextFlags:    params.ContextFlags,
		CreatedAt:       now,
	}
}

func (p *PipelineService) insertSyntheticFailure(ctx context.Context, params *models.CallParams, reason models.FailureReason) string {
	callUUID := fmt.Sprintf("FAILED_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
	now := time.Now()

	call := &models.ActiveCall{
		CallUUID:        callUUID,
		ClientID:        params.ClientID,
		CampaignID:      params.CampaignID,
		From:            params.From,
		To:              params.To,
		Status:          models.CallStatusFailed,
		StatusTimestamp: now,
		StartTime:       now,
		FailureReason:   &reason,
		ContactIndex:    params.ContactIndex,
		SequenceNumber:  params.SequenceNumber,
		ContactData:     params.ContactData,
		ContextFlags:    params.ContextFlags,
		CreatedAt:       now,
	}

	if _, err := p.activeCalls.Insert(ctx, call); err != nil {
		p.logger.WithError(err).WithField("callUUID", callUUID).Error("pipeline: failed to insert synthetic failure row")
	}
	return callUUID
}

func (p *PipelineService) markFailed(ctx context.Context, callUUID string, reason models.FailureReason, detail string) {
	_, err := p.activeCalls.Transition(ctx, callUUID, models.CallStatusFailed, map[string]interface{}{
		"failure_reason": reason,
		"end_reason":     detail,
	})
	if err != nil {
		p.logger.WithError(err).WithField("callUUID", callUUID).Error("pipeline: failed to mark pre-reserved row as failed")
	}
}

// webhooksFor builds the full set of callback URLs for a dispatch
// (§4.4, §6 webhook URL conventions).
func (p *PipelineService) webhooksFor(provider models.Provider, params *models.CallParams) providers.WebhookURLs {
	base := strings.TrimRight(p.telephony.BaseURL, "/")

	if provider == models.ProviderTwilio {
		return providers.WebhookURLs{
			StatusURL:          fmt.Sprintf("%s/twilio/status-callback", base),
			RecordingStatusURL: fmt.Sprintf("%s/twilio/recording-status", base),
		}
	}

	answerURL := fmt.Sprintf("%s/ip/xml-plivo", base)
	answerURL = providers.AnswerURLWithContactData(answerURL, contactQueryParams(params))

	return providers.WebhookURLs{
		AnswerURL: answerURL,
		RingURL:   fmt.Sprintf("%s/plivo/ring-url", base),
		HangupURL: fmt.Sprintf("%s/plivo/hangup-url", base),
	}
}

// contactQueryParams flattens the identifying and custom contact fields
// onto the answer URL per §6: "wss, clientId, listId, campId, and every
// custom column in the contact row except _id and listId".
func contactQueryParams(params *models.CallParams) map[string]interface{} {
	out := map[string]interface{}{
		"wss":      params.WssURL,
		"clientId": params.ClientID,
	}
	if params.ListID != "" {
		out["listId"] = params.ListID
	}
	if params.CampaignID != nil {
		out["campId"] = *params.CampaignID
	}
	for k, v := range params.ContactData {
		if k == "_id" || k == "listId" {
			continue
		}
		out[k] = v
	}
	return out
}
