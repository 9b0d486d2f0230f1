package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// AWSSNSProvider sends alert SMS through AWS SNS's direct-publish API.
type AWSSNSProvider struct {
	client *sns.Client
}

func NewAWSSNSProvider(region string) (*AWSSNSProvider, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSNSProvider{client: sns.NewFromConfig(cfg)}, nil
}

func (a *AWSSNSProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	input := &sns.PublishInput{
		Message:     aws.String(request.Message),
		PhoneNumber: aws.String(request.To),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	resp, err := a.client.Publish(ctx, input)
	if err != nil {
		return &SMSResponse{Status: "failed", Error: err.Error()}, err
	}

	return &SMSResponse{MessageID: *resp.MessageId, Status: "sent"}, nil
}
