package message

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for messaging operations.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message text cannot be empty")
)

// Repository defines the interface for conversation and message storage.
type Repository interface {
	// GetOrCreateConversation returns the conversation between two users,
	// creating it on first contact. The pair order does not matter.
	GetOrCreateConversation(userA, userB string) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(id string) (*Conversation, error)

	// ListConversations returns all conversations a user belongs to,
	// most recently active first.
	ListConversations(userID string) ([]*Conversation, error)

	// AppendMessage stores a message and bumps the conversation's
	// activity timestamp.
	AppendMessage(msg *Message) error

	// ListMessages returns messages in a conversation, oldest first.
	// limit <= 0 means no limit; otherwise the newest limit messages.
	ListMessages(conversationID string, limit int) ([]*Message, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	byPair        map[string]string // "a|b" (sorted) -> conversation ID
	messages      map[string][]*Message
}

// NewInMemoryRepository creates a new in-memory message repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		conversations: make(map[string]*Conversation),
		byPair:        make(map[string]string),
		messages:      make(map[string][]*Message),
	}
}

// GetOrCreateConversation returns or creates the conversation for a pair.
func (r *InMemoryRepository) GetOrCreateConversation(userA, userB string) (*Conversation, error) {
	a, b := memberPair(userA, userB)
	key := a + "|" + b

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPair[key]; ok {
		conv := *r.conversations[id]
		return &conv, nil
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		MemberA:   a,
		MemberB:   b,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.conversations[conv.ID] = conv
	r.byPair[key] = conv.ID

	convCopy := *conv
	return &convCopy, nil
}

// GetConversation retrieves a conversation by ID.
func (r *InMemoryRepository) GetConversation(id string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	convCopy := *conv
	return &convCopy, nil
}

// ListConversations returns a user's conversations, most recent first.
func (r *InMemoryRepository) ListConversations(userID string) ([]*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Conversation
	for _, conv := range r.conversations {
		if conv.HasMember(userID) {
			convCopy := *conv
			results = append(results, &convCopy)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	return results, nil
}

// AppendMessage stores a message and bumps conversation activity.
func (r *InMemoryRepository) AppendMessage(msg *Message) error {
	if msg.Text == "" {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[msg.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	msgCopy := *msg
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], &msgCopy)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

// ListMessages returns messages oldest first, keeping the newest limit.
func (r *InMemoryRepository) ListMessages(conversationID string, limit int) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}

	stored := r.messages[conversationID]
	start := 0
	if limit > 0 && len(stored) > limit {
		start = len(stored) - limit
	}

	results := make([]*Message, 0, len(stored)-start)
	for _, msg := range stored[start:] {
		msgCopy := *msg
		results = append(results, &msgCopy)
	}
	return results, nil
}
