package services

import (
	"context"
	"testing"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/providers"
)

func newTestRouter(t *testing.T, plivo, twilio providers.CallProvider, clients *fakeClientRepo, mappings *fakePhoneProviderRepo, defaultProvider string) *RouterService {
	t.Helper()
	cfg := &config.TelephonyConfig{DefaultProvider: defaultProvider}
	return NewRouterService(clients, mappings, plivo, twilio, cfg, discardLogger())
}

// TestRouterServiceResolveProviderPrecedence exercises §4.5 step 1:
// explicit override beats the phone map, which beats the configured
// default.
func TestRouterServiceResolveProviderPrecedence(t *testing.T) {
	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	router := newTestRouter(t, &fakeProvider{name: models.ProviderPlivo}, &fakeProvider{name: models.ProviderTwilio}, clients, mappings, "plivo")

	ctx := context.Background()
	mappings.Upsert(ctx, &models.PhoneProviderMapping{PhoneNumber: "+15550000000", Provider: models.ProviderTwilio})

	// No override, no mapping: falls back to the configured default.
	if got := router.resolveProvider(ctx, &models.CallParams{From: "+15551111111"}); got != models.ProviderPlivo {
		t.Fatalf("expected default provider plivo, got %s", got)
	}

	// Mapping present: wins over the default.
	if got := router.resolveProvider(ctx, &models.CallParams{From: "+15550000000"}); got != models.ProviderTwilio {
		t.Fatalf("expected mapped provider twilio, got %s", got)
	}

	// Explicit override wins over everything.
	if got := router.resolveProvider(ctx, &models.CallParams{From: "+15550000000", Provider: models.ProviderPlivo}); got != models.ProviderPlivo {
		t.Fatalf("expected explicit override plivo, got %s", got)
	}
}

// TestRouterServiceResolveCredentialsFallsBackWhenNumberNotValidated
// exercises §4.5 step 3: a client-specific credential set that hasn't
// validated the "from" number falls back to system defaults rather than
// dialing with unvalidated credentials.
func TestRouterServiceResolveCredentialsFallsBackWhenNumberNotValidated(t *testing.T) {
	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	router := newTestRouter(t, &fakeProvider{name: models.ProviderPlivo}, &fakeProvider{name: models.ProviderTwilio}, clients, mappings, "plivo")

	ctx := context.Background()
	clients.Upsert(ctx, &models.Client{
		ClientID: "client-1",
		PlivoCredentials: &models.ProviderCredentials{
			AccountSID:            "ABCDEFGHIJ0123456789",
			AuthToken:             "token",
			ValidatedPhoneNumbers: []string{"+15559999999"},
		},
	})

	creds, isClientSpecific := router.resolveCredentials(ctx, "client-1", models.ProviderPlivo, "+15551111111")
	if isClientSpecific {
		t.Fatal("expected fallback to system credentials for an unvalidated from number")
	}
	if creds.AccountSID != "" {
		t.Fatalf("expected empty credentials on fallback, got %+v", creds)
	}
}

func TestRouterServiceResolveCredentialsUsesClientSpecificWhenValidated(t *testing.T) {
	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	router := newTestRouter(t, &fakeProvider{name: models.ProviderPlivo}, &fakeProvider{name: models.ProviderTwilio}, clients, mappings, "plivo")

	ctx := context.Background()
	clients.Upsert(ctx, &models.Client{
		ClientID: "client-1",
		PlivoCredentials: &models.ProviderCredentials{
			AccountSID:            "ABCDEFGHIJ0123456789",
			AuthToken:             "token",
			ValidatedPhoneNumbers: []string{"+15551111111"},
		},
	})

	creds, isClientSpecific := router.resolveCredentials(ctx, "client-1", models.ProviderPlivo, "+15551111111")
	if !isClientSpecific {
		t.Fatal("expected client-specific credentials to be used for a validated number")
	}
	if creds.AccountSID != "ABCDEFGHIJ0123456789" {
		t.Fatalf("expected client credentials, got %+v", creds)
	}
}

func TestRouterServiceMakeCallRoutesToResolvedAdapter(t *testing.T) {
	clients := newFakeClientRepo()
	mappings := newFakePhoneProviderRepo()
	twilio := &fakeProvider{name: models.ProviderTwilio, result: &providers.OutboundCallResult{ProviderCallID: "CA123"}}
	plivo := &fakeProvider{name: models.ProviderPlivo}
	router := newTestRouter(t, plivo, twilio, clients, mappings, "plivo")

	result, err := router.MakeCall(context.Background(), &models.CallParams{Provider: models.ProviderTwilio, From: "+15551111111"}, providers.WebhookURLs{}, providers.OutboundCallRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != models.ProviderTwilio {
		t.Fatalf("expected twilio, got %s", result.Provider)
	}
	if result.ProviderCallID != "CA123" {
		t.Fatalf("expected CA123, got %s", result.ProviderCallID)
	}
	if len(twilio.calls) != 1 {
		t.Fatalf("expected exactly one call to the twilio adapter, got %d", len(twilio.calls))
	}
	if len(plivo.calls) != 0 {
		t.Fatal("expected no call reaching the plivo adapter")
	}
}
