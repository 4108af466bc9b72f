package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/afterdark-app/afterdark/internal/event"
)

// ErrMissingStartTime is returned when an event has no start time and a
// date window is active. The pipeline isolates this to the one record.
var ErrMissingStartTime = errors.New("event is missing a start time")

// startOfDay truncates t to local midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekendWindow returns the [start, end) bounds of "this weekend" relative
// to now: Friday 00:00 through the end of Sunday.
//
// When now falls on Saturday or Sunday the window anchors backward to the
// Friday of the weekend already in progress, so a query made on Saturday
// night still matches Friday's and Sunday's events instead of jumping to
// next week.
func weekendWindow(now time.Time) (start, end time.Time) {
	switch now.Weekday() {
	case time.Saturday:
		start = startOfDay(now.AddDate(0, 0, -1))
	case time.Sunday:
		start = startOfDay(now.AddDate(0, 0, -2))
	default:
		start = startOfDay(now.AddDate(0, 0, int(time.Friday-now.Weekday())))
	}
	return start, start.AddDate(0, 0, 3)
}

// matchesWindow reports whether the event's start time falls inside the
// criteria's date window, evaluated against the viewer's clock.
func matchesWindow(e *event.Event, c Criteria, now time.Time) (bool, error) {
	window := c.DateWindow
	if window == "" || window == WindowAll {
		return true, nil
	}
	if e.StartsAt.IsZero() {
		return false, fmt.Errorf("event %s: %w", e.ID, ErrMissingStartTime)
	}

	// Calendar comparisons happen in the viewer's time zone.
	start := e.StartsAt.In(now.Location())

	switch window {
	case WindowTonight:
		y1, m1, d1 := start.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2, nil

	case WindowThisWeekend:
		from, to := weekendWindow(now)
		return !start.Before(from) && start.Before(to), nil

	case WindowCustom:
		// Inclusive on both ends.
		return !start.Before(c.CustomStart) && !start.After(c.CustomEnd), nil

	default:
		return false, fmt.Errorf("unknown date window %q", window)
	}
}
