// Package notification delivers push notifications for guestlist decisions,
// direct messages, and social activity via Firebase Cloud Messaging.
package notification

import (
	"errors"
	"sync"
	"time"
)

// ErrTokenNotFound is returned when removing a device token that is not
// registered.
var ErrTokenNotFound = errors.New("device token not found")

// DeviceToken binds an FCM registration token to a user.
type DeviceToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"` // "ios" or "android"
	CreatedAt time.Time `json:"created_at"`
}

// TokenRepository defines the interface for device token storage.
type TokenRepository interface {
	// Register stores a device token for a user. Re-registering an existing
	// token moves it to the new user (device handoff).
	Register(token *DeviceToken) error

	// Remove deletes a device token, typically on logout or when FCM
	// reports it invalid.
	Remove(token string) error

	// TokensForUser returns all registered tokens for a user.
	TokensForUser(userID string) ([]string, error)
}

// InMemoryTokenRepository is an in-memory implementation of TokenRepository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*DeviceToken // token -> record
}

// NewInMemoryTokenRepository creates a new in-memory token repository.
func NewInMemoryTokenRepository() *InMemoryTokenRepository {
	return &InMemoryTokenRepository{
		tokens: make(map[string]*DeviceToken),
	}
}

// Register stores or reassigns a device token.
func (r *InMemoryTokenRepository) Register(token *DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *token
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.tokens[token.Token] = &stored
	return nil
}

// Remove deletes a device token.
func (r *InMemoryTokenRepository) Remove(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return ErrTokenNotFound
	}
	delete(r.tokens, token)
	return nil
}

// TokensForUser returns all tokens registered to a user.
func (r *InMemoryTokenRepository) TokensForUser(userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tokens []string
	for _, record := range r.tokens {
		if record.UserID == userID {
			tokens = append(tokens, record.Token)
		}
	}
	return tokens, nil
}
