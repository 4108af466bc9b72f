package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afterdark-app/afterdark/internal/discovery"
	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/social"
)

// nearbyDefaultLimit bounds how many upcoming events feed the pipeline.
const nearbyDefaultLimit = 200

// NearbyHandlers holds dependencies for the nearby-events endpoint.
type NearbyHandlers struct {
	eventRepo  event.Repository
	socialRepo social.Repository
	metrics    *discovery.Metrics // Optional, can be nil
}

// NewNearbyHandlers creates a new NearbyHandlers instance.
func NewNearbyHandlers(eventRepo event.Repository, socialRepo social.Repository, metrics *discovery.Metrics) *NearbyHandlers {
	return &NearbyHandlers{
		eventRepo:  eventRepo,
		socialRepo: socialRepo,
		metrics:    metrics,
	}
}

// NearbyResponse represents the response for the nearby-events endpoint.
type NearbyResponse struct {
	Results []discovery.Result `json:"results"`
}

// Nearby handles GET /events/nearby - distance-annotated, filtered,
// distance-sorted upcoming events.
//
// Query parameters:
//
//	lat, lng        viewer coordinates (optional; both or neither)
//	q               free-text filter over title, venue, and category
//	window          all | tonight | this-weekend | custom (default all)
//	start, end      RFC3339 bounds, required when window=custom
//	categories      comma-separated category list
//	max_distance    cap in miles (requires lat/lng)
//	guestlist       "true" keeps only events with a guestlist
//	friends         "true" keeps only events a followed mutual attends
//	                (requires authentication)
//	limit           candidate pool size, 1-500 (default 200)
func (h *NearbyHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	started := time.Now()

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

	criteria := discovery.Criteria{
		SearchText: query.Get("q"),
	}

	switch window := discovery.DateWindow(query.Get("window")); window {
	case "", discovery.WindowAll:
		criteria.DateWindow = discovery.WindowAll
	case discovery.WindowTonight, discovery.WindowThisWeekend:
		criteria.DateWindow = window
	case discovery.WindowCustom:
		startStr := query.Get("start")
		endStr := query.Get("end")
		if startStr == "" || endStr == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "window=custom requires start and end")
			return
		}
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid 'start' timestamp, must be RFC3339 format")
			return
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid 'end' timestamp, must be RFC3339 format")
			return
		}
		if end.Before(start) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTimeRange)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTimeRange, "'start' must not be after 'end'")
			return
		}
		criteria.DateWindow = discovery.WindowCustom
		criteria.CustomStart = start
		criteria.CustomEnd = end
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "window must be one of: all, tonight, this-weekend, custom")
		return
	}

	if categories := query.Get("categories"); categories != "" {
		for _, c := range strings.Split(categories, ",") {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" {
				criteria.Categories = append(criteria.Categories, c)
			}
		}
	}

	if maxStr := query.Get("max_distance"); maxStr != "" {
		maxDist, err := parseFloat(maxStr, "max_distance")
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		if maxDist <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "max_distance must be positive")
			return
		}
		if location == nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "max_distance requires lat and lng")
			return
		}
		criteria.MaxDistanceMiles = &maxDist
	}

	criteria.RequireGuestlist = query.Get("guestlist") == "true"
	criteria.RequireFriendsAttending = query.Get("friends") == "true"

	limit := nearbyDefaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := parseIntInRange(limitStr, "limit", 1, 500)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		limit = parsed
	}

	now := time.Now()
	events, err := h.eventRepo.ListUpcoming(now, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list upcoming events", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list events")
		return
	}

	var socialCtx *discovery.SocialContext
	if criteria.RequireFriendsAttending {
		userID := middleware.GetUserID(r.Context())
		if userID == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "friends filter requires authentication")
			return
		}
		socialCtx, err = h.buildSocialContext(userID, events)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to build social context", "error", err, "user_id", userID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve social graph")
			return
		}
	}

	viewer := discovery.Viewer{Location: location, Now: now}
	results, recordErrs := discovery.Apply(events, viewer, criteria, socialCtx)
	for _, recordErr := range recordErrs {
		slog.WarnContext(r.Context(), "event excluded from nearby results", "error", recordErr)
	}
	if h.metrics != nil {
		h.metrics.ObserveRun(len(events), len(results), len(recordErrs), time.Since(started))
	}

	if results == nil {
		results = []discovery.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(NearbyResponse{Results: results}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode nearby response", "error", err)
	}
}

// buildSocialContext fetches the follow set and per-event attendee sets
// needed by the friends-attending predicate.
func (h *NearbyHandlers) buildSocialContext(userID string, events []*event.Event) (*discovery.SocialContext, error) {
	followed, err := h.socialRepo.FollowedIDs(userID)
	if err != nil {
		return nil, err
	}

	attendees := make(map[string]map[string]struct{}, len(events))
	for _, e := range events {
		ids, err := h.eventRepo.AttendeeIDs(e.ID)
		if err != nil {
			return nil, err
		}
		attendees[e.ID] = ids
	}

	return &discovery.SocialContext{
		FollowedIDs: followed,
		Attendees:   attendees,
	}, nil
}
