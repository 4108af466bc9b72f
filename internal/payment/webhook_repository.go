// Package payment provides checkout sessions and Stripe webhook handling.
package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventAlreadyProcessed reports a duplicate webhook delivery. Stripe
// retries deliveries, so duplicates are routine and must be ignored.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEvent records that a Stripe event has been handled.
type WebhookEvent struct {
	ID          string
	EventID     string // Stripe event ID, e.g. evt_...
	EventType   string // Stripe event type, e.g. checkout.session.completed
	ProcessedAt time.Time
}

// WebhookRepository tracks which Stripe events have been processed so
// redelivered events are applied at most once.
type WebhookRepository interface {
	// RecordEvent marks an event as processed, returning
	// ErrEventAlreadyProcessed if the event_id was seen before.
	RecordEvent(eventID, eventType string) error

	// HasProcessed reports whether the event was already recorded.
	HasProcessed(eventID string) (bool, error)
}

// InMemoryWebhookRepository is a WebhookRepository backed by a map.
type InMemoryWebhookRepository struct {
	mu     sync.RWMutex
	events map[string]WebhookEvent // keyed by Stripe event ID
}

func NewInMemoryWebhookRepository() *InMemoryWebhookRepository {
	return &InMemoryWebhookRepository{events: make(map[string]WebhookEvent)}
}

func (r *InMemoryWebhookRepository) RecordEvent(eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.events[eventID]; seen {
		return ErrEventAlreadyProcessed
	}
	r.events[eventID] = WebhookEvent{
		ID:          uuid.New().String(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

func (r *InMemoryWebhookRepository) HasProcessed(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, seen := r.events[eventID]
	return seen, nil
}
