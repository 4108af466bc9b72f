// Package message provides direct messaging between mutual followers:
// conversations, message persistence, and best-effort realtime fan-out to
// connected clients.
package message

import (
	"sort"
	"time"
)

// Conversation represents a two-person message thread.
// The member pair is stored in sorted order so (a, b) and (b, a) map to the
// same conversation.
type Conversation struct {
	ID        string    `json:"id"`
	MemberA   string    `json:"member_a"`
	MemberB   string    `json:"member_b"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether the user belongs to the conversation.
func (c *Conversation) HasMember(userID string) bool {
	return c.MemberA == userID || c.MemberB == userID
}

// OtherMember returns the conversation partner of the given user.
func (c *Conversation) OtherMember(userID string) string {
	if c.MemberA == userID {
		return c.MemberB
	}
	return c.MemberA
}

// Message represents one direct message within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// memberPair normalizes a user pair into sorted order.
func memberPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}
