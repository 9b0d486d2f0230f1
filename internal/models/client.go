package models

// ProviderCredentials is a tenant's own credentials for one provider,
// validated-ownership-scoped to a set of phone numbers (§4.5 step 3).
type ProviderCredentials struct {
	AccountSID          string   `bson:"account_sid" json:"accountSid"`
	AuthToken           string   `bson:"auth_token" json:"-"`
	ValidatedPhoneNumbers []string `bson:"validated_phone_numbers,omitempty" json:"validatedPhoneNumbers,omitempty"`
}

// Client is a tenant of the orchestrator (§3 Client).
type Client struct {
	ClientID string `bson:"_id" json:"clientId"`

	MaxConcurrentCalls *int `bson:"max_concurrent_calls,omitempty" json:"maxConcurrentCalls,omitempty"`

	PlivoCredentials  *ProviderCredentials `bson:"plivo_credentials,omitempty" json:"plivoCredentials,omitempty"`
	TwilioCredentials *ProviderCredentials `bson:"twilio_credentials,omitempty" json:"twilioCredentials,omitempty"`

	// WarmupEnabled is a stored per-tenant warmup setting. Nothing reads
	// it: whether warmup runs is decided by the global BOT_WARMUP_ENABLED
	// flag alone.
	WarmupEnabled *bool `bson:"warmup_enabled,omitempty" json:"warmupEnabled,omitempty"`
}

// CredentialsFor returns the client's credentials for the given
// provider, or nil if the client has none configured.
func (c *Client) CredentialsFor(p Provider) *ProviderCredentials {
	if c == nil {
		return nil
	}
	switch p {
	case ProviderPlivo:
		return c.PlivoCredentials
	case ProviderTwilio:
		return c.TwilioCredentials
	default:
		return nil
	}
}
