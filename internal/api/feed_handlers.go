package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/feed"
	"github.com/afterdark-app/afterdark/internal/geo"
	"github.com/afterdark-app/afterdark/internal/middleware"
)

// feedDefaultLimit bounds how many upcoming events feed the ranker.
const feedDefaultLimit = 200

// FeedHandlers holds dependencies for the personalized feed endpoint.
type FeedHandlers struct {
	eventRepo event.Repository
	weights   *feed.Weights
	cache     *feed.Cache // Optional, can be nil
}

// NewFeedHandlers creates a new FeedHandlers instance.
// weights may be nil to use the default calibration; cache may be nil to
// rank on every request.
func NewFeedHandlers(eventRepo event.Repository, weights *feed.Weights, cache *feed.Cache) *FeedHandlers {
	return &FeedHandlers{
		eventRepo: eventRepo,
		weights:   weights,
		cache:     cache,
	}
}

// FeedResponse represents the response for the personalized feed endpoint.
type FeedResponse struct {
	Events []feed.ScoredEvent `json:"events"`
}

// Feed handles GET /feed - upcoming events ranked by personal relevance.
//
// Query parameters:
//
//	lat, lng   viewer coordinates (optional; both or neither)
//	interests  comma-separated category interests
//	limit      result count, 1-100 (default 50)
//
// Anonymous requests are served with neutral proximity and interest
// signals. Cached snapshots are only used for authenticated viewers with
// no explicit query overrides, since the cache is keyed by viewer alone.
func (h *FeedHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	latStr := query.Get("lat")
	lngStr := query.Get("lng")
	var location *geo.Point
	if latStr != "" || lngStr != "" {
		if latStr == "" || lngStr == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lat and lng must be provided together")
			return
		}
		lat, err := parseFloat(latStr, "lat")
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		lng, err := parseFloat(lngStr, "lng")
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		p := geo.Point{Lat: lat, Lng: lng}
		if !p.Valid() {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lat must be between -90 and 90 and lng between -180 and 180")
			return
		}
		location = &p
	}

	var interests []string
	if raw := query.Get("interests"); raw != "" {
		for _, interest := range strings.Split(raw, ",") {
			interest = strings.ToLower(strings.TrimSpace(interest))
			if interest != "" {
				interests = append(interests, interest)
			}
		}
	}

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := parseIntInRange(limitStr, "limit", 1, 100)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		limit = parsed
	}

	viewerID := middleware.GetUserID(r.Context())
	cacheable := h.cache != nil && viewerID != "" && location == nil && len(interests) == 0

	if cacheable {
		ranked, err := h.cache.Get(r.Context(), viewerID)
		if err == nil {
			writeFeedResponse(w, r, ranked, limit)
			return
		}
		if !errors.Is(err, feed.ErrCacheMiss) {
			slog.WarnContext(r.Context(), "feed cache read failed", "error", err, "user_id", viewerID)
		}
	}

	now := time.Now()
	events, err := h.eventRepo.ListUpcoming(now, feedDefaultLimit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list upcoming events", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list events")
		return
	}

	ranked, recordErrs := feed.Rank(events, location, interests, now, h.weights)
	for _, recordErr := range recordErrs {
		slog.WarnContext(r.Context(), "event excluded from feed", "error", recordErr)
	}

	if cacheable {
		if err := h.cache.Set(r.Context(), viewerID, ranked); err != nil {
			slog.WarnContext(r.Context(), "feed cache write failed", "error", err, "user_id", viewerID)
		}
	}

	writeFeedResponse(w, r, ranked, limit)
}

func writeFeedResponse(w http.ResponseWriter, r *http.Request, ranked []feed.ScoredEvent, limit int) {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []feed.ScoredEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(FeedResponse{Events: ranked}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode feed response", "error", err)
	}
}
