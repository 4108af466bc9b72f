// Package discovery provides the nearby-events pipeline: distance
// annotation, user-selected filtering, and distance-ordered results for the
// map and list views.
package discovery

import (
	"time"

	"github.com/afterdark-app/afterdark/internal/geo"
)

// DateWindow selects which time filter to apply.
type DateWindow string

// Supported date windows.
const (
	WindowAll         DateWindow = "all"
	WindowTonight     DateWindow = "tonight"
	WindowThisWeekend DateWindow = "this-weekend"
	WindowCustom      DateWindow = "custom"
)

// Criteria is the full set of user-selected filters. It is a value object:
// the UI replaces it wholesale on every filter change rather than mutating
// it in place, so Apply can treat it as immutable.
type Criteria struct {
	// SearchText is matched case-insensitively against title, venue name,
	// and category. Empty means no text filter.
	SearchText string `json:"search_text,omitempty"`

	// DateWindow defaults to WindowAll when empty.
	DateWindow DateWindow `json:"date_window,omitempty"`

	// CustomStart/CustomEnd bound WindowCustom, inclusive on both ends.
	CustomStart time.Time `json:"custom_start,omitempty"`
	CustomEnd   time.Time `json:"custom_end,omitempty"`

	// Categories restricts results to these categories. Empty = no restriction.
	Categories []string `json:"categories,omitempty"`

	// MaxDistanceMiles caps the annotated distance. Nil = unbounded.
	MaxDistanceMiles *float64 `json:"max_distance_miles,omitempty"`

	// RequireGuestlist keeps only events with a guestlist.
	RequireGuestlist bool `json:"require_guestlist,omitempty"`

	// RequireFriendsAttending keeps only events with at least one followed
	// user on the attendee list. Needs a SocialContext.
	RequireFriendsAttending bool `json:"require_friends_attending,omitempty"`
}

// SocialContext supplies the social-graph data for the friends-attending
// predicate. The pipeline itself has no access to the social graph; the
// caller fetches this once per request.
type SocialContext struct {
	// FollowedIDs is the set of user IDs the viewer follows.
	FollowedIDs map[string]struct{}

	// Attendees maps event ID to that event's attendee-ID set.
	Attendees map[string]map[string]struct{}
}

// Viewer bundles the per-request viewer context.
type Viewer struct {
	// Location is nil when the device location is unknown or denied.
	Location *geo.Point

	// Now anchors the date-window arithmetic; local calendar semantics use
	// this value's location (time zone).
	Now time.Time
}
