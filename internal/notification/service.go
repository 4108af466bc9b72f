package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// Service fans notifications out to every device a user has registered.
// Delivery is best-effort: a failure on one token does not stop the rest.
type Service struct {
	tokens TokenRepository
	sender Sender
	logger *slog.Logger
}

// NewService creates a notification service.
func NewService(tokens TokenRepository, sender Sender, logger *slog.Logger) *Service {
	return &Service{tokens: tokens, sender: sender, logger: logger}
}

// Notify sends a note to all of a user's devices. Tokens FCM rejects are
// removed so they are not retried forever.
func (s *Service) Notify(ctx context.Context, userID string, note *Note) error {
	tokens, err := s.tokens.TokensForUser(userID)
	if err != nil {
		return fmt.Errorf("fetching device tokens: %w", err)
	}

	for _, token := range tokens {
		if err := s.sender.Send(ctx, token, note); err != nil {
			s.logger.Warn("dropping undeliverable device token",
				"user_id", userID,
				"error", err,
			)
			if removeErr := s.tokens.Remove(token); removeErr != nil && removeErr != ErrTokenNotFound {
				s.logger.Error("failed to remove device token", "error", removeErr)
			}
		}
	}
	return nil
}

// GuestlistDecided notifies a user their guestlist request was decided.
func (s *Service) GuestlistDecided(ctx context.Context, userID, eventID, eventTitle, status string) error {
	body := "Your guestlist request for " + eventTitle + " was denied."
	if status == "approved" {
		body = "You're on the list for " + eventTitle + "!"
	}
	return s.Notify(ctx, userID, &Note{
		Title: "Guestlist update",
		Body:  body,
		Data: map[string]string{
			"kind":     "guestlist." + status,
			"event_id": eventID,
		},
	})
}

// MessageReceived notifies a user about a new direct message.
func (s *Service) MessageReceived(ctx context.Context, userID, conversationID, senderName, preview string) error {
	return s.Notify(ctx, userID, &Note{
		Title: senderName,
		Body:  preview,
		Data: map[string]string{
			"kind":            "message.created",
			"conversation_id": conversationID,
		},
	})
}

// FriendAttending notifies a user that someone they follow is going to an
// event.
func (s *Service) FriendAttending(ctx context.Context, userID, eventID, friendName, eventTitle string) error {
	return s.Notify(ctx, userID, &Note{
		Title: friendName + " is going out",
		Body:  friendName + " is attending " + eventTitle,
		Data: map[string]string{
			"kind":     "event.friend_attending",
			"event_id": eventID,
		},
	})
}
