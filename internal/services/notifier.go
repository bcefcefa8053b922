package services

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Notification is a push message for an offline member
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier delivers push notifications to a device
type Notifier interface {
	Send(ctx context.Context, deviceToken string, n Notification) error
}

// NopNotifier drops every notification. It is used when APNs is not configured.
type NopNotifier struct{}

// Send does nothing
func (NopNotifier) Send(ctx context.Context, deviceToken string, n Notification) error {
	return nil
}

// APNsNotifier sends notifications through Apple Push Notification service
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier creates a token-authenticated APNs client
func NewAPNsNotifier(keyFile, keyID, teamID, topic string, production bool) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{
		client: client,
		topic:  topic,
	}, nil
}

// Send pushes a single alert
func (n *APNsNotifier) Send(ctx context.Context, deviceToken string, note Notification) error {
	p := payload.NewPayload().
		AlertTitle(note.Title).
		AlertBody(note.Body).
		Sound("default")
	for k, v := range note.Data {
		p.Custom(k, v)
	}

	res, err := n.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}
