package event

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for event operations.
var (
	ErrEventNotFound   = errors.New("event not found")
	ErrEventDeleted    = errors.New("event has been deleted")
	ErrAlreadyAttending = errors.New("user is already on the attendee list")
	ErrNotAttending    = errors.New("user is not on the attendee list")
)

// Repository defines the interface for event data operations.
type Repository interface {
	// Create stores a new event. Fills ID and timestamps when unset.
	Create(event *Event) error

	// Update modifies an existing event. Returns ErrEventNotFound or
	// ErrEventDeleted when the target is missing or soft-deleted.
	Update(event *Event) error

	// GetByID retrieves an event by its ID. Soft-deleted events return
	// ErrEventDeleted.
	GetByID(id string) (*Event, error)

	// ListUpcoming returns non-deleted events starting at or after now,
	// ordered by start time ascending. limit <= 0 means no limit.
	ListUpcoming(now time.Time, limit int) ([]*Event, error)

	// Delete soft-deletes an event.
	Delete(id string) error

	// AddAttendee adds a user to the event's attendee set.
	AddAttendee(eventID, userID string) error

	// RemoveAttendee removes a user from the event's attendee set.
	RemoveAttendee(eventID, userID string) error

	// AttendeeIDs returns the set of user IDs attending the event.
	AttendeeIDs(eventID string) (map[string]struct{}, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	events    map[string]*Event
	attendees map[string]map[string]struct{}
	order     []string
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events:    make(map[string]*Event),
		attendees: make(map[string]map[string]struct{}),
	}
}

// Create stores a new event, filling ID and timestamps when unset.
func (r *InMemoryRepository) Create(event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	r.events[event.ID] = event.Clone()
	r.order = append(r.order, event.ID)
	return nil
}

// Update modifies an existing event.
func (r *InMemoryRepository) Update(event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[event.ID]
	if !ok {
		return ErrEventNotFound
	}
	if existing.Deleted() {
		return ErrEventDeleted
	}

	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = time.Now().UTC()
	event.AttendeeCount = len(r.attendees[event.ID])
	r.events[event.ID] = event.Clone()
	return nil
}

// GetByID retrieves an event by its ID.
func (r *InMemoryRepository) GetByID(id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if existing.Deleted() {
		return nil, ErrEventDeleted
	}
	return existing.Clone(), nil
}

// ListUpcoming returns non-deleted events starting at or after now.
func (r *InMemoryRepository) ListUpcoming(now time.Time, limit int) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Event
	for _, id := range r.order {
		e := r.events[id]
		if e.Deleted() || e.StartsAt.Before(now) {
			continue
		}
		results = append(results, e.Clone())
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartsAt.Before(results[j].StartsAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete soft-deletes an event.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if existing.Deleted() {
		return ErrEventDeleted
	}

	now := time.Now().UTC()
	existing.DeletedAt = &now
	existing.UpdatedAt = now
	return nil
}

// AddAttendee adds a user to the event's attendee set.
func (r *InMemoryRepository) AddAttendee(eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if existing.Deleted() {
		return ErrEventDeleted
	}

	set := r.attendees[eventID]
	if set == nil {
		set = make(map[string]struct{})
		r.attendees[eventID] = set
	}
	if _, dup := set[userID]; dup {
		return ErrAlreadyAttending
	}
	set[userID] = struct{}{}
	existing.AttendeeCount = len(set)
	return nil
}

// RemoveAttendee removes a user from the event's attendee set.
func (r *InMemoryRepository) RemoveAttendee(eventID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}

	set := r.attendees[eventID]
	if _, present := set[userID]; !present {
		return ErrNotAttending
	}
	delete(set, userID)
	existing.AttendeeCount = len(set)
	return nil
}

// AttendeeIDs returns a copy of the event's attendee set.
func (r *InMemoryRepository) AttendeeIDs(eventID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.events[eventID]; !ok {
		return nil, ErrEventNotFound
	}

	out := make(map[string]struct{}, len(r.attendees[eventID]))
	for id := range r.attendees[eventID] {
		out[id] = struct{}{}
	}
	return out, nil
}
