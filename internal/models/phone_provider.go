package models

// PhoneProviderMapping maps an outbound "from" number to the provider it
// must be dialed through (§3 Phone-Provider Mapping). Absence of a row
// implies the system default provider.
type PhoneProviderMapping struct {
	PhoneNumber string                 `bson:"_id" json:"phoneNumber"`
	Provider    Provider               `bson:"provider" json:"provider"`
	Config      map[string]interface{} `bson:"config,omitempty" json:"config,omitempty"`
}
