package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"goride/internal/models"
)

// plivoAccountSIDPattern validates the 20-char uppercase alphanumeric
// Plivo Auth ID format (§4.4).
var plivoAccountSIDPattern = regexp.MustCompile(`^[A-Z0-9]{20}$`)

// PlivoProvider dials through Plivo's REST API. No Go SDK for Plivo
// exists in the dependency corpus this orchestrator was built from, so
// the adapter talks the REST API directly over net/http with HTTP Basic
// auth, the same way the teacher's other raw-HTTP integrations are
// written.
type PlivoProvider struct {
	baseURL    string
	httpClient *http.Client
	defaults   Credentials
}

// NewPlivoProvider builds the Plivo adapter. defaultCreds are used when a
// call carries no client-specific credentials.
func NewPlivoProvider(defaultCreds Credentials, timeout time.Duration) *PlivoProvider {
	return &PlivoProvider{
		baseURL:    "https://api.plivo.com/v1",
		httpClient: &http.Client{Timeout: timeout},
		defaults:   defaultCreds,
	}
}

func (p *PlivoProvider) Name() models.Provider {
	return models.ProviderPlivo
}

func (p *PlivoProvider) ValidateConfig(creds Credentials) error {
	resolved := p.resolve(creds)
	if resolved.AccountSID == "" || resolved.AuthToken == "" {
		return fmt.Errorf("plivo: missing credentials")
	}
	if !plivoAccountSIDPattern.MatchString(resolved.AccountSID) {
		return fmt.Errorf("plivo: auth id %q is not a 20-char uppercase alphanumeric SID", resolved.AccountSID)
	}
	return nil
}

func (p *PlivoProvider) resolve(creds Credentials) Credentials {
	if creds.AccountSID != "" && creds.AuthToken != "" {
		return creds
	}
	return p.defaults
}

type plivoCallRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	AnswerURL string `json:"answer_url"`
	RingURL   string `json:"ring_url,omitempty"`
	HangupURL string `json:"hangup_url,omitempty"`
}

type plivoCallResponse struct {
	RequestUUID string `json:"request_uuid"`
	Message     string `json:"message"`
	APIID       string `json:"api_id"`
}

// MakeCall implements §4.4 Plivo: the answer_url carries every contact
// field as flat query parameters so the downstream answer-XML endpoint
// (not modeled here — owned by the bot side, §4.12) can render TwiML
// equivalent without a second round trip.
func (p *PlivoProvider) MakeCall(ctx context.Context, req OutboundCallRequest, webhooks WebhookURLs) (*OutboundCallResult, error) {
	creds := p.resolve(req.Credentials)
	if err := p.ValidateConfig(creds); err != nil {
		return nil, err
	}

	body := plivoCallRequest{
		From:      req.From,
		To:        req.To,
		AnswerURL: webhooks.AnswerURL,
		RingURL:   webhooks.RingURL,
		HangupURL: webhooks.HangupURL,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("plivo: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/Account/%s/Call/", p.baseURL, creds.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("plivo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(creds.AccountSID, creds.AuthToken)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &AdapterError{Stage: "api_exception", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return nil, &AdapterError{
			Stage:      "api_call_failed",
			HTTPStatus: resp.StatusCode,
			Detail:     string(respBody),
			Err:        fmt.Errorf("plivo: call creation failed with status %d", resp.StatusCode),
		}
	}

	var parsed plivoCallResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("plivo: decode response: %w", err)
	}
	if parsed.RequestUUID == "" {
		return nil, fmt.Errorf("plivo: response carried no request_uuid")
	}

	return &OutboundCallResult{ProviderCallID: parsed.RequestUUID}, nil
}

func (p *PlivoProvider) MapStatus(providerStatus string) models.CallStatus {
	switch providerStatus {
	case "ring", "ringing":
		return models.CallStatusRinging
	case "answer", "in-progress":
		return models.CallStatusOngoing
	case "hangup", "completed":
		return models.CallStatusEnded
	case "busy", "failed", "no-answer", "canceled":
		return models.CallStatusFailed
	default:
		return models.CallStatusProcessed
	}
}

// AnswerURLWithContactData flattens contact data onto the answer URL as
// query parameters (§4.4: "answer_url carries all contact fields as
// query parameters, flat, no nesting").
func AnswerURLWithContactData(base string, contactData map[string]interface{}) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range contactData {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// AdapterError carries enough detail for the Call Pipeline to classify a
// dispatch failure (§4.4: "Failure returns carry enough detail ... for
// the pipeline to decide recoverability").
type AdapterError struct {
	Stage      string
	HTTPStatus int
	Detail     string
	Err        error
}

func (e *AdapterError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (http %d): %v", e.Stage, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
