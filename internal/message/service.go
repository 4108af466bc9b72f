package message

import (
	"errors"
	"strings"
	"time"

	"github.com/afterdark-app/afterdark/internal/social"
	"github.com/google/uuid"
)

// ErrNotMutual is returned when a user tries to message someone who does not
// follow them back. Direct messages require a mutual follow.
var ErrNotMutual = errors.New("direct messages require a mutual follow")

// MaxMessageLength bounds a single message body.
const MaxMessageLength = 2000

// ErrMessageTooLong is returned when a message body exceeds MaxMessageLength.
var ErrMessageTooLong = errors.New("message text too long")

// Service coordinates conversation access, the mutual-follow gate, and
// real-time fan-out.
type Service struct {
	repo   Repository
	social social.Repository
	hub    *Hub
}

// NewService creates a messaging service. hub may be nil when real-time
// delivery is not needed (tests, batch tools).
func NewService(repo Repository, socialRepo social.Repository, hub *Hub) *Service {
	return &Service{repo: repo, social: socialRepo, hub: hub}
}

// Send delivers a message from sender to recipient, creating the conversation
// on first contact. Both directions of the follow edge must exist.
func (s *Service) Send(senderID, recipientID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	mutual, err := s.social.IsMutual(senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if !mutual {
		return nil, ErrNotMutual
	}

	conv, err := s.repo.GetOrCreateConversation(senderID, recipientID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.AppendMessage(msg); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast(conv.ID, &MessageEvent{
			Type:           "message.created",
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderID:       msg.SenderID,
			Text:           msg.Text,
			CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
		})
	}
	return msg, nil
}

// History returns the newest limit messages of a conversation, oldest first.
// Only members of the conversation may read it.
func (s *Service) History(userID, conversationID string, limit int) ([]*Message, error) {
	conv, err := s.repo.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, ErrConversationNotFound
	}
	return s.repo.ListMessages(conversationID, limit)
}

// Conversations lists the user's conversations, most recently active first.
func (s *Service) Conversations(userID string) ([]*Conversation, error) {
	return s.repo.ListConversations(userID)
}

// CanSubscribe reports whether a user may open a websocket on a conversation.
func (s *Service) CanSubscribe(userID, conversationID string) (bool, error) {
	conv, err := s.repo.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.HasMember(userID), nil
}
