package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository is a map-backed Repository guarded by an RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*IdempotencyKey
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{keys: make(map[string]*IdempotencyKey)}
}

// Get returns the stored key, or ErrKeyNotFound.
func (r *InMemoryRepository) Get(key string) (*IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return record.clone(), nil
}

// Store saves a new key, or returns ErrKeyExists on duplicates.
func (r *InMemoryRepository) Store(record *IdempotencyKey) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[record.Key]; exists {
		return ErrKeyExists
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	// Clones on both sides keep callers from mutating stored state.
	r.keys[record.Key] = record.clone()
	return nil
}

// DeleteOlderThan removes keys created before now minus the given age.
func (r *InMemoryRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-duration)
	var deleted int64
	for key, record := range r.keys {
		if record.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}

func (k *IdempotencyKey) clone() *IdempotencyKey {
	if k == nil {
		return nil
	}
	copied := *k
	if k.PaymentID != nil {
		paymentID := *k.PaymentID
		copied.PaymentID = &paymentID
	}
	return &copied
}
