package discovery

import (
	"sort"
	"strings"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
)

// Result is one pipeline output row: the event plus its distance from the
// viewer. DistanceMiles is nil whenever either side lacks coordinates —
// never zero or a sentinel, so the UI can render "distance unknown".
type Result struct {
	Event         *event.Event `json:"event"`
	DistanceMiles *float64     `json:"distance_miles,omitempty"`
}

// Apply runs the nearby pipeline: annotate every event with its distance
// from the viewer, drop events failing any active predicate, and order the
// survivors by distance when the viewer's location is known.
//
// Predicates are pure and independent: the surviving set for a predicate
// combination equals the intersection of each predicate's surviving set, so
// evaluation order never changes the result. The input slice is not
// mutated. Events that fail a predicate because of missing required data
// (no start time under a date window) are reported in the error slice and
// excluded, never aborting the batch.
//
// social may be nil unless criteria.RequireFriendsAttending is set; with a
// nil social context that predicate matches nothing.
func Apply(events []*event.Event, viewer Viewer, criteria Criteria, social *SocialContext) ([]Result, []error) {
	results := make([]Result, 0, len(events))
	var errs []error

	for _, e := range events {
		ok, err := matches(e, viewer, criteria, social)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		results = append(results, Result{
			Event:         e,
			DistanceMiles: distanceTo(e, viewer.Location),
		})
	}

	// Distance cap needs the annotation, so it runs over results rather
	// than inside matches. It is still commutative with the rest.
	if criteria.MaxDistanceMiles != nil {
		bounded := results[:0]
		for _, r := range results {
			if r.DistanceMiles != nil && *r.DistanceMiles <= *criteria.MaxDistanceMiles {
				bounded = append(bounded, r)
			}
		}
		results = bounded
	}

	// Unknown viewer location: keep input order, no distance sort.
	if viewer.Location != nil {
		sort.SliceStable(results, func(i, j int) bool {
			di, dj := results[i].DistanceMiles, results[j].DistanceMiles
			switch {
			case di == nil:
				return false
			case dj == nil:
				return true
			default:
				return *di < *dj
			}
		})
	}

	return results, errs
}

// distanceTo returns the haversine distance in miles, or nil when either
// location is unknown.
func distanceTo(e *event.Event, viewer *geo.Point) *float64 {
	if viewer == nil || e.Location == nil {
		return nil
	}
	d := geo.HaversineMiles(*viewer, *e.Location)
	return &d
}

// matches evaluates every non-distance predicate against one event.
func matches(e *event.Event, viewer Viewer, criteria Criteria, social *SocialContext) (bool, error) {
	if !matchesSearch(e, criteria.SearchText) {
		return false, nil
	}

	ok, err := matchesWindow(e, criteria, viewer.Now)
	if err != nil || !ok {
		return false, err
	}

	if !matchesCategories(e, criteria.Categories) {
		return false, nil
	}
	if criteria.RequireGuestlist && !e.HasGuestlist {
		return false, nil
	}
	if criteria.RequireFriendsAttending && !friendsAttending(e, social) {
		return false, nil
	}
	return true, nil
}

// matchesSearch does a case-insensitive substring match against title,
// venue name, and category. Empty search text is a no-op.
func matchesSearch(e *event.Event, searchText string) bool {
	query := strings.ToLower(strings.TrimSpace(searchText))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Title), query) {
		return true
	}
	if strings.Contains(strings.ToLower(e.VenueName), query) {
		return true
	}
	return strings.Contains(strings.ToLower(e.CategoryName()), query)
}

// matchesCategories checks set membership; an empty set means no restriction.
func matchesCategories(e *event.Event, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	category := strings.ToLower(e.CategoryName())
	for _, c := range categories {
		if strings.ToLower(c) == category {
			return true
		}
	}
	return false
}

// friendsAttending reports whether anyone the viewer follows is on the
// event's attendee list.
func friendsAttending(e *event.Event, social *SocialContext) bool {
	if social == nil || len(social.FollowedIDs) == 0 {
		return false
	}
	attendees := social.Attendees[e.ID]
	if len(attendees) == 0 {
		return false
	}
	// Iterate the smaller set.
	if len(social.FollowedIDs) < len(attendees) {
		for id := range social.FollowedIDs {
			if _, ok := attendees[id]; ok {
				return true
			}
		}
		return false
	}
	for id := range attendees {
		if _, ok := social.FollowedIDs[id]; ok {
			return true
		}
	}
	return false
}
