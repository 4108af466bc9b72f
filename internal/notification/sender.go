package notification

import (
	"context"
	"log/slog"

	"firebase.google.com/go/messaging"
)

// Sender delivers a push notification to a single device token.
type Sender interface {
	Send(ctx context.Context, token string, note *Note) error
}

// Note is a platform-neutral push payload.
type Note struct {
	Title string
	Body  string
	// Data carries deep-link parameters the client uses to route taps,
	// e.g. {"kind": "guestlist.approved", "event_id": "..."}.
	Data map[string]string
}

// FCMSender delivers notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender creates a sender backed by an FCM messaging client.
func NewFCMSender(client *messaging.Client, logger *slog.Logger) *FCMSender {
	return &FCMSender{client: client, logger: logger}
}

// Send delivers one notification. High priority on both platforms so alerts
// about tonight's events surface promptly.
func (s *FCMSender) Send(ctx context.Context, token string, note *Note) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Body,
		},
		Data: note.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: note.Title,
						Body:  note.Body,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		s.logger.Error("failed to send push notification", "error", err)
		return err
	}
	s.logger.Debug("push notification sent", "response", response)
	return nil
}

// NoopSender discards notifications. Used in development and tests where no
// FCM credentials are configured.
type NoopSender struct{}

// Send does nothing.
func (NoopSender) Send(_ context.Context, _ string, _ *Note) error { return nil }
