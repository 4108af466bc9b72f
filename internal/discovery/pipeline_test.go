package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
)

const milesPerDegreeLat = 69.09

var testNow = time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC) // Wednesday

func testViewer() Viewer {
	return Viewer{
		Location: &geo.Point{Lat: 40.0, Lng: -73.0},
		Now:      testNow,
	}
}

// testEvent builds an event at the given distance north of the test viewer.
func testEvent(id string, miles float64, opts ...func(*event.Event)) *event.Event {
	e := &event.Event{
		ID:        id,
		Title:     "Untitled " + id,
		Location:  &geo.Point{Lat: 40.0 + miles/milesPerDegreeLat, Lng: -73.0},
		StartsAt:  testNow.Add(3 * time.Hour),
		CreatedAt: testNow.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func withCategory(c string) func(*event.Event) {
	return func(e *event.Event) { e.Category = &c }
}

func withTitle(t string) func(*event.Event) {
	return func(e *event.Event) { e.Title = t }
}

func withVenue(v string) func(*event.Event) {
	return func(e *event.Event) { e.VenueName = v }
}

func withGuestlist() func(*event.Event) {
	return func(e *event.Event) { e.HasGuestlist = true }
}

func withNoLocation() func(*event.Event) {
	return func(e *event.Event) { e.Location = nil }
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Event.ID
	}
	return ids
}

// TestApplyNoFilters verifies a pass-through run: every event survives
// exactly once, annotated with distance.
func TestApplyNoFilters(t *testing.T) {
	events := []*event.Event{
		testEvent("a", 3),
		testEvent("b", 1),
		testEvent("c", 0, withNoLocation()),
	}

	results, errs := Apply(events, testViewer(), Criteria{}, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 3 {
		t.Fatalf("expected all 3 events, got %d", len(results))
	}

	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Event.ID]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if counts[id] != 1 {
			t.Errorf("event %s appeared %d times, want exactly once", id, counts[id])
		}
	}
}

// TestApplyDistanceAnnotation verifies distance is present for located
// events and exactly nil otherwise.
func TestApplyDistanceAnnotation(t *testing.T) {
	events := []*event.Event{
		testEvent("located", 5),
		testEvent("no-venue", 0, withNoLocation()),
	}

	results, _ := Apply(events, testViewer(), Criteria{}, nil)
	for _, r := range results {
		switch r.Event.ID {
		case "located":
			if r.DistanceMiles == nil {
				t.Error("expected a distance for the located event")
			} else if *r.DistanceMiles < 4.9 || *r.DistanceMiles > 5.1 {
				t.Errorf("distance = %f, want ~5", *r.DistanceMiles)
			}
		case "no-venue":
			if r.DistanceMiles != nil {
				t.Errorf("expected nil distance, got %f", *r.DistanceMiles)
			}
		}
	}

	// Unknown viewer location: every distance is nil.
	noLoc := Viewer{Now: testNow}
	results, _ = Apply(events, noLoc, Criteria{}, nil)
	for _, r := range results {
		if r.DistanceMiles != nil {
			t.Errorf("event %s: expected nil distance with unknown viewer location", r.Event.ID)
		}
	}
}

// TestApplySortsByDistance verifies ascending distance order with
// nil-distance events last, and input order preserved without a location.
func TestApplySortsByDistance(t *testing.T) {
	events := []*event.Event{
		testEvent("far", 20),
		testEvent("unknown", 0, withNoLocation()),
		testEvent("near", 1),
		testEvent("mid", 7),
	}

	results, _ := Apply(events, testViewer(), Criteria{}, nil)
	got := resultIDs(results)
	want := []string{"near", "mid", "far", "unknown"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted order = %v, want %v", got, want)
		}
	}

	// Without a viewer location the input order is preserved.
	results, _ = Apply(events, Viewer{Now: testNow}, Criteria{}, nil)
	got = resultIDs(results)
	want = []string{"far", "unknown", "near", "mid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unsorted order = %v, want input order %v", got, want)
		}
	}
}

func TestApplySearchText(t *testing.T) {
	events := []*event.Event{
		testEvent("by-title", 1, withTitle("Neon Nights")),
		testEvent("by-venue", 2, withVenue("The Neon Room")),
		testEvent("by-category", 3, withCategory("neon-rave")),
		testEvent("no-match", 4, withTitle("Jazz Brunch")),
	}

	results, _ := Apply(events, testViewer(), Criteria{SearchText: "NEON"}, nil)
	got := resultIDs(results)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %v", got)
	}
	for _, id := range got {
		if id == "no-match" {
			t.Error("search should not match Jazz Brunch")
		}
	}
}

func TestApplyCategorySet(t *testing.T) {
	events := []*event.Event{
		testEvent("club", 1, withCategory("club")),
		testEvent("bar", 2, withCategory("bar")),
		testEvent("concert", 3, withCategory("concert")),
		testEvent("uncategorized", 4),
	}

	results, _ := Apply(events, testViewer(), Criteria{Categories: []string{"Club", "BAR"}}, nil)
	got := resultIDs(results)
	if len(got) != 2 || got[0] != "club" || got[1] != "bar" {
		t.Errorf("category filter surviving set = %v, want [club bar]", got)
	}

	// Empty set means no restriction.
	results, _ = Apply(events, testViewer(), Criteria{Categories: nil}, nil)
	if len(results) != 4 {
		t.Errorf("empty category set filtered events: got %d, want 4", len(results))
	}
}

func TestApplyMaxDistance(t *testing.T) {
	events := []*event.Event{
		testEvent("near", 2),
		testEvent("far", 30),
		testEvent("unknown", 0, withNoLocation()),
	}

	maxMiles := 10.0
	results, _ := Apply(events, testViewer(), Criteria{MaxDistanceMiles: &maxMiles}, nil)
	got := resultIDs(results)
	if len(got) != 1 || got[0] != "near" {
		t.Errorf("max-distance surviving set = %v, want [near]", got)
	}
}

func TestApplyGuestlistOnly(t *testing.T) {
	events := []*event.Event{
		testEvent("open", 1),
		testEvent("gated", 2, withGuestlist()),
	}

	results, _ := Apply(events, testViewer(), Criteria{RequireGuestlist: true}, nil)
	got := resultIDs(results)
	if len(got) != 1 || got[0] != "gated" {
		t.Errorf("guestlist filter surviving set = %v, want [gated]", got)
	}
}

func TestApplyFriendsAttending(t *testing.T) {
	events := []*event.Event{
		testEvent("with-friends", 1),
		testEvent("strangers", 2),
		testEvent("empty", 3),
	}
	social := &SocialContext{
		FollowedIDs: map[string]struct{}{"friend-1": {}, "friend-2": {}},
		Attendees: map[string]map[string]struct{}{
			"with-friends": {"friend-2": {}, "stranger-9": {}},
			"strangers":    {"stranger-1": {}, "stranger-2": {}},
		},
	}

	results, _ := Apply(events, testViewer(), Criteria{RequireFriendsAttending: true}, social)
	got := resultIDs(results)
	if len(got) != 1 || got[0] != "with-friends" {
		t.Errorf("friends filter surviving set = %v, want [with-friends]", got)
	}

	// Without a social context the predicate matches nothing.
	results, _ = Apply(events, testViewer(), Criteria{RequireFriendsAttending: true}, nil)
	if len(results) != 0 {
		t.Errorf("expected no matches without social context, got %v", resultIDs(results))
	}
}

// TestApplyPredicateCommutativity verifies the surviving set for {A, B}
// equals the intersection of the surviving sets for {A} and {B} alone.
func TestApplyPredicateCommutativity(t *testing.T) {
	events := []*event.Event{
		testEvent("gated-club", 1, withCategory("club"), withGuestlist()),
		testEvent("open-club", 2, withCategory("club")),
		testEvent("gated-bar", 3, withCategory("bar"), withGuestlist()),
		testEvent("open-bar", 4, withCategory("bar")),
	}

	onlyCategory := Criteria{Categories: []string{"club"}}
	onlyGuestlist := Criteria{RequireGuestlist: true}
	both := Criteria{Categories: []string{"club"}, RequireGuestlist: true}

	setOf := func(c Criteria) map[string]bool {
		results, _ := Apply(events, testViewer(), c, nil)
		set := make(map[string]bool)
		for _, r := range results {
			set[r.Event.ID] = true
		}
		return set
	}

	a := setOf(onlyCategory)
	b := setOf(onlyGuestlist)
	combined := setOf(both)

	for _, e := range events {
		inIntersection := a[e.ID] && b[e.ID]
		if combined[e.ID] != inIntersection {
			t.Errorf("event %s: combined=%v, intersection=%v", e.ID, combined[e.ID], inIntersection)
		}
	}
	if len(combined) != 1 || !combined["gated-club"] {
		t.Errorf("expected only gated-club to survive both filters, got %v", combined)
	}
}

// TestApplyIsolatesRecordErrors verifies a record missing its start time
// under an active date window is reported and skipped, not fatal.
func TestApplyIsolatesRecordErrors(t *testing.T) {
	broken := testEvent("broken", 2)
	broken.StartsAt = time.Time{}
	events := []*event.Event{
		testEvent("tonight", 1, func(e *event.Event) {
			e.StartsAt = time.Date(2026, 9, 2, 22, 0, 0, 0, time.UTC)
		}),
		broken,
	}

	results, errs := Apply(events, testViewer(), Criteria{DateWindow: WindowTonight}, nil)
	if len(results) != 1 || results[0].Event.ID != "tonight" {
		t.Fatalf("expected only the valid event, got %v", resultIDs(results))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrMissingStartTime) {
		t.Errorf("expected one ErrMissingStartTime, got %v", errs)
	}
}

// TestApplyDoesNotMutateInput verifies the input slice keeps its order and
// contents after a filtered, sorted run.
func TestApplyDoesNotMutateInput(t *testing.T) {
	events := []*event.Event{
		testEvent("far", 30),
		testEvent("near", 1),
		testEvent("mid", 10),
	}

	Apply(events, testViewer(), Criteria{RequireGuestlist: false}, nil)

	want := []string{"far", "near", "mid"}
	for i, e := range events {
		if e.ID != want[i] {
			t.Fatalf("input slice mutated: index %d is %s, want %s", i, e.ID, want[i])
		}
	}
}
