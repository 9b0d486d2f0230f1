package config

// OpsAlertConfig configures the out-of-band on-call alert channels (§2.16):
// FCM push to the on-call mobile app on campaign pause/fail/orphan, and an
// SNS SMS to an on-call phone number on global gate exhaustion. Distinct
// from WebSocketConfig's in-browser dashboard feed — these reach an
// operator who isn't watching the dashboard.
type OpsAlertConfig struct {
	PushEnabled       bool   `yaml:"push_enabled"`
	FCMCredentialsFile string `yaml:"fcm_credentials_file"`
	FCMOnCallTopic    string `yaml:"fcm_on_call_topic"`

	SMSEnabled       bool   `yaml:"sms_enabled"`
	SNSRegion        string `yaml:"sns_region"`
	OnCallPhoneNumber string `yaml:"on_call_phone_number"`
}

func loadOpsAlertConfig() *OpsAlertConfig {
	return &OpsAlertConfig{
		PushEnabled:        getEnvAsBool("OPS_ALERT_PUSH_ENABLED", false),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
		FCMOnCallTopic:     getEnv("FCM_ON_CALL_TOPIC", "ops-on-call"),

		SMSEnabled:        getEnvAsBool("OPS_ALERT_SMS_ENABLED", false),
		SNSRegion:         getEnv("AWS_SNS_REGION", "us-east-1"),
		OnCallPhoneNumber: getEnv("OPS_ON_CALL_PHONE_NUMBER", ""),
	}
}
