package providers

import (
	"context"

	"goride/internal/models"
)

// Credentials carries the account identifiers a CallProvider dials with.
// Zero value means "use the system default credentials configured for
// this provider" (§3 Client, §4.5 step 3).
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// OutboundCallRequest is what the Call Pipeline hands a provider adapter
// after the gate, router, and warmup stages have all passed (§4.6).
type OutboundCallRequest struct {
	CallUUID    string
	From        string
	To          string
	WssURL      string
	ContactData map[string]interface{}
	Credentials Credentials
}

// OutboundCallResult is the provider-side call handle returned on
// successful placement.
type OutboundCallResult struct {
	ProviderCallID string // Plivo's requestUuid / Twilio's CallSid
}

// WebhookURLs is the set of callback endpoints a provider needs wired in
// at call-creation time (§4.5 step 2, §4.7).
type WebhookURLs struct {
	AnswerURL           string
	RingURL             string
	HangupURL           string
	StatusURL           string // Twilio uses a single status-callback URL
	RecordingStatusURL  string // Twilio recording-status callback (§4.4)
}

// CallProvider is the common contract every telephony vendor adapter
// implements (§4.4). Implementations must be safe for concurrent use.
type CallProvider interface {
	// Name identifies the provider for logging and status mapping.
	Name() models.Provider

	// MakeCall places one outbound call and returns the vendor's call
	// handle. For Twilio the CallUUID is already reserved in the
	// Active-Call Ledger before this is invoked (§8 scenario #2), so a
	// status callback racing this call still finds its row. For Plivo no
	// row exists yet: the pipeline inserts it after this returns, keyed
	// by the returned ProviderCallID.
	MakeCall(ctx context.Context, req OutboundCallRequest, webhooks WebhookURLs) (*OutboundCallResult, error)

	// ValidateConfig checks that credentials are present and well-formed
	// before a dispatch attempt is made, so misconfiguration surfaces as
	// a fast local error instead of a vendor API round trip.
	ValidateConfig(creds Credentials) error

	// MapStatus translates the provider's native status vocabulary into
	// the engine's CallStatus (§7).
	MapStatus(providerStatus string) models.CallStatus
}
