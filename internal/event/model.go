// Package event provides models and repositories for nightlife events:
// the listings users discover on the map and in the personalized feed.
package event

import (
	"time"

	"github.com/afterdark-app/afterdark/internal/geo"
)

// Event represents a nightlife event listing.
// Location and Category are optional: an event may be announced before a
// venue is locked in, and uncategorized events are allowed.
type Event struct {
	ID          string     `json:"id"`
	HostID      string     `json:"host_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	VenueName   string     `json:"venue_name,omitempty"`

	// Precise coordinates, nil until a venue is set.
	Location *geo.Point `json:"location,omitempty"`
	// Coarse geohash for public map pins (see geo.CoarsePrecision).
	CoarseGeohash string `json:"coarse_geohash,omitempty"`

	Category *string `json:"category,omitempty"`

	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	FlyerKey     string `json:"flyer_key,omitempty"`
	TicketURL    string `json:"ticket_url,omitempty"`
	HasGuestlist bool   `json:"has_guestlist"`

	// AttendeeCount is denormalized from the attendee set for feed scoring.
	AttendeeCount int `json:"attendee_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the event has been soft-deleted.
func (e *Event) Deleted() bool {
	return e.DeletedAt != nil
}

// CategoryName returns the event's category lowercased, or "" when unset.
func (e *Event) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// Clone returns a deep copy of the event so callers can hold results
// without aliasing repository state.
func (e *Event) Clone() *Event {
	c := *e
	if e.Location != nil {
		loc := *e.Location
		c.Location = &loc
	}
	if e.Category != nil {
		cat := *e.Category
		c.Category = &cat
	}
	if e.EndsAt != nil {
		end := *e.EndsAt
		c.EndsAt = &end
	}
	if e.DeletedAt != nil {
		del := *e.DeletedAt
		c.DeletedAt = &del
	}
	return &c
}
