package models

import "time"

// Provider identifies which telephony vendor placed a call.
type Provider string

const (
	ProviderPlivo  Provider = "plivo"
	ProviderTwilio Provider = "twilio"
)

// CallStatus is the five-state (plus processed/timeout) lifecycle every
// ActiveCall row moves through.
type CallStatus string

const (
	CallStatusProcessed CallStatus = "processed"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusEnded     CallStatus = "call-ended"
	CallStatusFailed    CallStatus = "failed"
	CallStatusTimeout   CallStatus = "timeout"
)

// activeStatuses count against concurrency (I2).
var activeStatuses = []CallStatus{CallStatusProcessed, CallStatusRinging, CallStatusOngoing}

// ActiveStatuses returns the set of statuses that count against
// concurrency caps.
func ActiveStatuses() []CallStatus {
	out := make([]CallStatus, len(activeStatuses))
	copy(out, activeStatuses)
	return out
}

func (s CallStatus) IsActive() bool {
	for _, st := range activeStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s CallStatus) IsTerminal() bool {
	return s == CallStatusEnded || s == CallStatusFailed || s == CallStatusTimeout
}

// FailureReason enumerates the taxonomy of §7.
type FailureReason string

const (
	FailureBotNotReady          FailureReason = "bot_not_ready"
	FailureAPICallFailed        FailureReason = "api_call_failed"
	FailureAPIException         FailureReason = "api_exception"
	FailureWebhookTimeout       FailureReason = "webhook_timeout"
	FailureOneTimeCleanupTimeout FailureReason = "one_time_cleanup_timeout"
)

// ContextFlags controls what context the downstream bot receives.
type ContextFlags struct {
	IncludeGlobalContext bool `bson:"include_global_context" json:"includeGlobalContext"`
	IncludeAgentContext  bool `bson:"include_agent_context" json:"includeAgentContext"`
}

// ActiveCall is the authoritative per-call ledger row (§3 ActiveCall).
// Its Mongo `_id` is the business `callUUID` itself (see DESIGN.md's
// resolution of the clientId/campaignId typing open question) so there
// is exactly one identifier per row.
type ActiveCall struct {
	CallUUID string `bson:"_id" json:"callUUID"`

	ClientID   string  `bson:"client_id" json:"clientId"`
	CampaignID *string `bson:"campaign_id,omitempty" json:"campaignId,omitempty"`
	From       string  `bson:"from" json:"from"`
	To         string  `bson:"to" json:"to"`

	Provider Provider   `bson:"provider" json:"provider"`
	Status   CallStatus `bson:"status" json:"status"`

	StatusTimestamp time.Time  `bson:"status_timestamp" json:"statusTimestamp"`
	StartTime       time.Time  `bson:"start_time" json:"startTime"`
	EndTime         *time.Time `bson:"end_time,omitempty" json:"endTime,omitempty"`
	Duration        int        `bson:"duration,omitempty" json:"duration,omitempty"`
	EndReason       string     `bson:"end_reason,omitempty" json:"endReason,omitempty"`

	FailureReason *FailureReason `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`

	WarmupAttempts int           `bson:"warmup_attempts" json:"warmupAttempts"`
	WarmupDuration time.Duration `bson:"warmup_duration" json:"warmupDuration"`

	ContactIndex   int                    `bson:"contact_index" json:"contactIndex"`
	SequenceNumber int                    `bson:"sequence_number" json:"sequenceNumber"`
	ContactData    map[string]interface{} `bson:"contact_data,omitempty" json:"contactData,omitempty"`

	ContextFlags ContextFlags `bson:"context_flags" json:"contextFlags"`

	TwilioCallSID string `bson:"twilio_call_sid,omitempty" json:"twilioCallSid,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// CallParams is the request a Call Pipeline stage receives to place one
// outbound call.
type CallParams struct {
	ClientID       string
	CampaignID     *string
	ListID         string
	From           string
	To             string
	Provider       Provider // explicit override; empty means "resolve via router"
	WssURL         string
	ContactIndex   int
	SequenceNumber int
	ContactData    map[string]interface{}
	ContextFlags   ContextFlags
}

// DispatchResult is returned by the Call Pipeline on both success and
// failure paths (§4.6).
type DispatchResult struct {
	Success           bool
	CallUUID          string
	Provider          Provider
	CallID            string
	ProcessingTime    time.Duration
	WarmupTime        time.Duration
	WaitTime          time.Duration
	ShouldPauseCampaign bool
	Stage             string
	Error             string
}
