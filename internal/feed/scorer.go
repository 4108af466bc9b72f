package feed

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
)

// NeutralScore is the sub-score used when a signal cannot be computed
// (unknown viewer location, no recorded interests).
const NeutralScore = 50.0

// ErrMissingTimestamps is returned when an event lacks the created or start
// time needed for recency and timing scoring. The caller decides whether to
// skip the record or surface the failure; scoring never fabricates a value.
var ErrMissingTimestamps = errors.New("event is missing created or start time")

// ScoredEvent pairs an event with its computed relevance score.
type ScoredEvent struct {
	Event *event.Event `json:"event"`
	Score float64      `json:"score"`
}

// ProximityScore maps the distance between viewer and event to [0, 100].
// Unknown viewer location or event coordinates yield NeutralScore rather
// than penalizing the event.
//
// The breakpoints are a step function, not a continuous decay: the mobile
// clients pin UI copy ("walking distance", "short ride") to these bands.
func ProximityScore(e *event.Event, viewer *geo.Point) float64 {
	if viewer == nil || e.Location == nil {
		return NeutralScore
	}

	d := geo.HaversineMiles(*viewer, *e.Location)
	switch {
	case d <= 1:
		return 100
	case d <= 5:
		return 80
	case d <= 10:
		return 60
	case d <= 25:
		return 40
	case d <= 50:
		return 20
	default:
		return 10
	}
}

// PopularityScore maps the attendee count to [0, 100].
func PopularityScore(attendeeCount int) float64 {
	switch {
	case attendeeCount >= 50:
		return 100
	case attendeeCount >= 25:
		return 80
	case attendeeCount >= 10:
		return 60
	case attendeeCount >= 5:
		return 40
	case attendeeCount >= 1:
		return 20
	default:
		return 10
	}
}

// InterestScore maps the overlap between the event's category and the
// viewer's interests to [0, 100]. A viewer with no recorded interests gets
// NeutralScore for every event; an uncategorized event scores low because
// we cannot claim a match. Matching is case-insensitive; a substring
// relation in either direction ("techno" vs "techno club") counts as a
// partial match.
func InterestScore(e *event.Event, interests []string) float64 {
	if len(interests) == 0 {
		return NeutralScore
	}
	if e.Category == nil || *e.Category == "" {
		return 20
	}

	category := strings.ToLower(*e.Category)
	partial := false
	for _, interest := range interests {
		in := strings.ToLower(interest)
		if in == category {
			return 100
		}
		if strings.Contains(category, in) || strings.Contains(in, category) {
			partial = true
		}
	}
	if partial {
		return 70
	}
	return 20
}

// RecencyScore maps hours since the listing was created to [0, 100].
// Fresh listings score highest so new events get feed exposure.
func RecencyScore(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	switch {
	case hours <= 24:
		return 100
	case hours <= 72:
		return 80
	case hours <= 168:
		return 60
	case hours <= 336:
		return 40
	default:
		return 20
	}
}

// TimingScore maps hours until the event starts to [0, 100].
// Past events score zero; events starting within a day score highest.
func TimingScore(startsAt, now time.Time) float64 {
	hours := startsAt.Sub(now).Hours()
	switch {
	case hours < 0:
		return 0
	case hours <= 24:
		return 100
	case hours <= 48:
		return 80
	case hours <= 168:
		return 60
	case hours <= 720:
		return 40
	default:
		return 20
	}
}

// Score computes the relevance score for a single event.
// viewer may be nil (unknown location) and interests may be empty; both map
// to neutral sub-scores. An event without timestamps is a per-record error.
// Pass nil weights to use DefaultWeights.
func Score(e *event.Event, viewer *geo.Point, interests []string, now time.Time, w *Weights) (float64, error) {
	if w == nil {
		w = DefaultWeights()
	}
	if e.CreatedAt.IsZero() || e.StartsAt.IsZero() {
		return 0, fmt.Errorf("event %s: %w", e.ID, ErrMissingTimestamps)
	}

	score := ProximityScore(e, viewer)*w.Proximity +
		PopularityScore(e.AttendeeCount)*w.Popularity +
		InterestScore(e, interests)*w.Interest +
		RecencyScore(e.CreatedAt, now)*w.Recency +
		TimingScore(e.StartsAt, now)*w.Timing

	return score, nil
}

// Rank scores every event and returns them ordered by descending relevance.
// The input slice is never mutated. Events that cannot be scored are left
// out of the ranking and reported in the returned error slice, mirroring
// config.Load's partial-failure shape: one bad record never sinks the feed.
//
// Equal scores are broken by event ID ascending so the ordering is
// deterministic across calls regardless of input order.
func Rank(events []*event.Event, viewer *geo.Point, interests []string, now time.Time, w *Weights) ([]ScoredEvent, []error) {
	if w == nil {
		w = DefaultWeights()
	}

	ranked := make([]ScoredEvent, 0, len(events))
	var errs []error
	for _, e := range events {
		s, err := Score(e, viewer, interests, now, w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ranked = append(ranked, ScoredEvent{Event: e, Score: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Event.ID < ranked[j].Event.ID
	})

	return ranked, errs
}
