// Package guestlist provides the approval-gated attendee flow: users
// request a spot, hosts approve or deny, and approved entries land on the
// event's attendee list.
package guestlist

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry statuses. The only legal transitions are pending -> approved and
// pending -> denied.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// Common errors for guestlist operations.
var (
	ErrEntryNotFound   = errors.New("guestlist entry not found")
	ErrAlreadyDecided  = errors.New("guestlist entry has already been decided")
	ErrInvalidStatus   = errors.New("invalid guestlist status")
)

// Entry represents one user's request to join an event's guestlist.
type Entry struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	Note      string     `json:"note,omitempty"` // Optional message to the host
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
}

// Repository defines the interface for guestlist data operations.
type Repository interface {
	// Request creates a pending entry for (eventID, userID). Idempotent:
	// repeating a request returns the existing entry unchanged, whatever
	// its status.
	Request(eventID, userID, note string) (*Entry, error)

	// Decide moves a pending entry to approved or denied.
	// Returns ErrAlreadyDecided for entries that are no longer pending.
	Decide(entryID, status, decidedBy string) (*Entry, error)

	// GetByID retrieves an entry.
	GetByID(entryID string) (*Entry, error)

	// GetForUser retrieves the entry for (eventID, userID), if any.
	GetForUser(eventID, userID string) (*Entry, error)

	// ListByEvent returns entries for an event, oldest first, optionally
	// restricted to one status ("" = all).
	ListByEvent(eventID, status string) ([]*Entry, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byUser  map[string]string // eventID+"/"+userID -> entryID
	order   []string
}

// NewInMemoryRepository creates a new in-memory guestlist repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*Entry),
		byUser:  make(map[string]string),
	}
}

func userKey(eventID, userID string) string {
	return eventID + "/" + userID
}

// Request creates a pending entry, or returns the existing one.
func (r *InMemoryRepository) Request(eventID, userID, note string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byUser[userKey(eventID, userID)]; ok {
		existing := *r.entries[id]
		return &existing, nil
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UserID:    userID,
		Status:    StatusPending,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	r.entries[entry.ID] = entry
	r.byUser[userKey(eventID, userID)] = entry.ID
	r.order = append(r.order, entry.ID)

	entryCopy := *entry
	return &entryCopy, nil
}

// Decide moves a pending entry to approved or denied.
func (r *InMemoryRepository) Decide(entryID, status, decidedBy string) (*Entry, error) {
	if status != StatusApproved && status != StatusDenied {
		return nil, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	if entry.Status != StatusPending {
		return nil, ErrAlreadyDecided
	}

	now := time.Now().UTC()
	entry.Status = status
	entry.DecidedAt = &now
	entry.DecidedBy = decidedBy

	entryCopy := *entry
	return &entryCopy, nil
}

// GetByID retrieves an entry.
func (r *InMemoryRepository) GetByID(entryID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// GetForUser retrieves the entry for (eventID, userID).
func (r *InMemoryRepository) GetForUser(eventID, userID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[userKey(eventID, userID)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	entryCopy := *r.entries[id]
	return &entryCopy, nil
}

// ListByEvent returns entries for an event, oldest first.
func (r *InMemoryRepository) ListByEvent(eventID, status string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.EventID != eventID {
			continue
		}
		if status != "" && entry.Status != status {
			continue
		}
		entryCopy := *entry
		results = append(results, &entryCopy)
	}
	return results, nil
}
