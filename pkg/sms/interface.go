package sms

import "context"

// SMSProvider sends a single alert SMS. Trimmed to the one operation
// this domain exercises (an on-call page on gate exhaustion) rather
// than the full bulk-send/delivery-status surface a consumer-facing
// OTP or marketing system would need.
type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
}

type SMSRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}
