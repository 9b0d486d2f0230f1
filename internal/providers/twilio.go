package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"goride/internal/models"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioProvider dials through the Twilio REST API via the official SDK,
// grounded on the teacher's call_service.go client construction.
type TwilioProvider struct {
	client   *twilio.RestClient
	defaults Credentials
}

// NewTwilioProvider builds the Twilio adapter bound to the given default
// account credentials. Client-specific credentials, when present on a
// request, build a short-lived client instead of reusing this one.
func NewTwilioProvider(defaultCreds Credentials) *TwilioProvider {
	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: defaultCreds.AccountSID,
			Password: defaultCreds.AuthToken,
		}),
		defaults: defaultCreds,
	}
}

func (p *TwilioProvider) Name() models.Provider {
	return models.ProviderTwilio
}

func (p *TwilioProvider) ValidateConfig(creds Credentials) error {
	resolved := p.resolve(creds)
	if resolved.AccountSID == "" || resolved.AuthToken == "" {
		return fmt.Errorf("twilio: missing credentials")
	}
	return nil
}

func (p *TwilioProvider) resolve(creds Credentials) Credentials {
	if creds.AccountSID != "" && creds.AuthToken != "" {
		return creds
	}
	return p.defaults
}

func (p *TwilioProvider) clientFor(creds Credentials) *twilio.RestClient {
	resolved := p.resolve(creds)
	if resolved.AccountSID == p.defaults.AccountSID {
		return p.client
	}
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: resolved.AccountSID,
		Password: resolved.AuthToken,
	})
}

// MakeCall implements §4.4 Twilio. req.CallUUID has already been
// pre-reserved into the Active-Call Ledger by the caller before this is
// invoked, so a status-callback racing ahead of this call's own response
// still finds its row (§8 scenario #2). The Twilio CallSid itself is
// attached to that row afterward by the caller, not here.
func (p *TwilioProvider) MakeCall(ctx context.Context, req OutboundCallRequest, webhooks WebhookURLs) (*OutboundCallResult, error) {
	if err := p.ValidateConfig(req.Credentials); err != nil {
		return nil, err
	}

	twiml := BuildMediaStreamTwiML(req.WssURL, req.ContactData)

	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetTwiml(twiml)
	params.SetStatusCallback(webhooks.StatusURL)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})

	if webhooks.RecordingStatusURL != "" {
		params.SetRecord(true)
		params.SetRecordingStatusCallback(webhooks.RecordingStatusURL)
	}

	client := p.clientFor(req.Credentials)
	resp, err := client.Api.CreateCall(params)
	if err != nil {
		return nil, &AdapterError{Stage: "api_call_failed", Err: fmt.Errorf("twilio: create call: %w", err)}
	}
	if resp.Sid == nil {
		return nil, &AdapterError{Stage: "api_exception", Err: fmt.Errorf("twilio: response carried no CallSid")}
	}

	return &OutboundCallResult{ProviderCallID: *resp.Sid}, nil
}

// MapStatus implements the §4.4 status vocabulary mapping:
// queued|initiated→processed, ringing→ringing, in-progress→ongoing,
// completed→call-ended, busy|failed|no-answer|canceled→failed.
func (p *TwilioProvider) MapStatus(providerStatus string) models.CallStatus {
	switch strings.ToLower(providerStatus) {
	case "queued", "initiated":
		return models.CallStatusProcessed
	case "ringing":
		return models.CallStatusRinging
	case "in-progress":
		return models.CallStatusOngoing
	case "completed":
		return models.CallStatusEnded
	case "busy", "failed", "no-answer", "canceled":
		return models.CallStatusFailed
	default:
		return models.CallStatusProcessed
	}
}

// BuildMediaStreamTwiML renders the <Connect><Stream> verb that opens a
// bidirectional media stream to wssURL, with every context field carried
// as a <Parameter> element, grounded on the reference provider's
// buildMediaStreamTwiML.
func BuildMediaStreamTwiML(wssURL string, contactData map[string]interface{}) string {
	var params strings.Builder

	keys := make([]string, 0, len(contactData))
	for k := range contactData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		params.WriteString(fmt.Sprintf(
			`            <Parameter name=%q value=%q/>`+"\n",
			k, fmt.Sprintf("%v", contactData[k]),
		))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url=%q>
%s        </Stream>
    </Connect>
</Response>`, wssURL, params.String())
}

// MaskAccountSID redacts all but the last four characters of a SID for
// logging and the router's response payload (§4.5 step 5).
func MaskAccountSID(sid string) string {
	if len(sid) <= 4 {
		return strings.Repeat("*", len(sid))
	}
	return strings.Repeat("*", len(sid)-4) + sid[len(sid)-4:]
}
