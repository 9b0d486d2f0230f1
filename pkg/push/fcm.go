package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMProvider sends push notifications through Firebase Cloud Messaging.
type FCMProvider struct {
	client *messaging.Client
}

func NewFCMProvider(credentialsFile string) (*FCMProvider, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMProvider{client: client}, nil
}

func (f *FCMProvider) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	message := &messaging.Message{
		Data: request.Data,
		Notification: &messaging.Notification{
			Title: request.Title,
			Body:  request.Body,
		},
	}

	if request.Token != "" {
		message.Token = request.Token
	} else if request.Topic != "" {
		message.Topic = request.Topic
	}

	id, err := f.client.Send(ctx, message)
	if err != nil {
		return &NotificationResponse{Success: false, Error: err.Error()}, err
	}

	return &NotificationResponse{MessageID: id, Success: true}, nil
}
