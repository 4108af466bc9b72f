// Package feed provides the "For You" relevance scorer with calibration
// support for personalized event discovery.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := feed.LoadCalibration("configs/feed.calibration.json")
//	if err != nil {
//		slog.Warn("using default feed weights", "error", err)
//	}
//
//	ranked, errs := feed.Rank(events, viewerLocation, viewerInterests, time.Now(), weights)
//	for _, se := range ranked {
//		fmt.Println(se.Event.Title, se.Score)
//	}
//
// Scoring:
//
// Each event receives five sub-scores in the [0, 100] range (proximity,
// popularity, interest match, recency, timing) which are combined into a
// weighted sum. The default weights are 0.30/0.25/0.25/0.15/0.05, so the
// final score also lands in [0, 100].
//
// The scorer is a pure function over its inputs: it owns no state, performs
// no I/O, and never mutates the event list. Viewer location and interests
// are explicit parameters rather than ambient context so the scorer stays
// independently testable. Callers that want memoization should use Cache,
// which snapshots ranked feeds in Redis — the scorer itself caches nothing.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of scoring weights via a
// JSON file loaded at startup. This enables ranking experiments without code
// changes (a restart picks up new configuration).
package feed
