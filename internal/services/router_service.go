package services

import (
	"context"
	"strings"

	"goride/internal/config"
	"goride/internal/models"
	"goride/internal/providers"
	"goride/internal/repositories/interfaces"

	"github.com/sirupsen/logrus"
)

// RouterResult wraps an adapter's dispatch result with the routing
// metadata the pipeline needs to record (§4.5 step 5).
type RouterResult struct {
	*providers.OutboundCallResult
	Provider         models.Provider
	IsClientSpecific bool
	MaskedAccountSID string
}

// RouterService is the Phone-Number → Provider Router (§4.5).
type RouterService struct {
	clients       interfaces.ClientRepository
	phoneMappings interfaces.PhoneProviderRepository
	plivo         providers.CallProvider
	twilio        providers.CallProvider
	defaultProvider models.Provider
	logger        *logrus.Logger
}

func NewRouterService(
	clients interfaces.ClientRepository,
	phoneMappings interfaces.PhoneProviderRepository,
	plivo providers.CallProvider,
	twilio providers.CallProvider,
	cfg *config.TelephonyConfig,
	logger *logrus.Logger,
) *RouterService {
	defaultProvider := models.ProviderPlivo
	if strings.EqualFold(cfg.DefaultProvider, string(models.ProviderTwilio)) {
		defaultProvider = models.ProviderTwilio
	}

	return &RouterService{
		clients:         clients,
		phoneMappings:   phoneMappings,
		plivo:           plivo,
		twilio:          twilio,
		defaultProvider: defaultProvider,
		logger:          logger,
	}
}

func (r *RouterService) providerFor(name models.Provider) providers.CallProvider {
	if name == models.ProviderTwilio {
		return r.twilio
	}
	return r.plivo
}

// resolveProvider implements §4.5 step 1.
func (r *RouterService) resolveProvider(ctx context.Context, params *models.CallParams) models.Provider {
	if params.Provider != "" {
		return params.Provider
	}

	mapping, err := r.phoneMappings.Get(ctx, params.From)
	if err != nil {
		r.logger.WithError(err).WithField("from", params.From).
			Warn("router: failed to look up phone-provider mapping, using default")
		return r.defaultProvider
	}
	if mapping != nil {
		return mapping.Provider
	}

	return r.defaultProvider
}

// resolveCredentials implements §4.5 steps 2-3: prefer client-specific
// credentials, fail safe back to system defaults if the number isn't
// ownership-validated.
func (r *RouterService) resolveCredentials(ctx context.Context, clientID string, provider models.Provider, from string) (providers.Credentials, bool) {
	client, err := r.clients.Get(ctx, clientID)
	if err != nil || client == nil {
		return providers.Credentials{}, false
	}

	creds := client.CredentialsFor(provider)
	if creds == nil {
		return providers.Credentials{}, false
	}

	if len(creds.ValidatedPhoneNumbers) > 0 && !contains(creds.ValidatedPhoneNumbers, from) {
		r.logger.WithFields(logrus.Fields{
			"clientId": clientID,
			"from":     from,
			"provider": provider,
		}).Warn("router: from number not in client's validated numbers, falling back to system credentials")
		return providers.Credentials{}, false
	}

	return providers.Credentials{AccountSID: creds.AccountSID, AuthToken: creds.AuthToken}, true
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// MakeCall implements §4.5 makeCall end to end.
func (r *RouterService) MakeCall(ctx context.Context, params *models.CallParams, webhooks providers.WebhookURLs, req providers.OutboundCallRequest) (*RouterResult, error) {
	provider := r.resolveProvider(ctx, params)
	adapter := r.providerFor(provider)

	creds, isClientSpecific := r.resolveCredentials(ctx, params.ClientID, provider, params.From)
	req.Credentials = creds

	result, err := adapter.MakeCall(ctx, req, webhooks)
	if err != nil {
		return nil, err
	}

	masked := ""
	if creds.AccountSID != "" {
		masked = providers.MaskAccountSID(creds.AccountSID)
	}

	return &RouterResult{
		OutboundCallResult: result,
		Provider:           provider,
		IsClientSpecific:   isClientSpecific,
		MaskedAccountSID:   masked,
	}, nil
}
