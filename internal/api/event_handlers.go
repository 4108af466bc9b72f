// Package api provides HTTP handlers for the Afterdark API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/geo"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/notification"
	"github.com/afterdark-app/afterdark/internal/social"
	"github.com/afterdark-app/afterdark/internal/validate"
)

// CreateEventRequest represents the request body for creating an event.
type CreateEventRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	VenueName    string     `json:"venue_name,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lng          *float64   `json:"lng,omitempty"`
	Category     *string    `json:"category,omitempty"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	FlyerKey     string     `json:"flyer_key,omitempty"`
	TicketURL    string     `json:"ticket_url,omitempty"`
	HasGuestlist bool       `json:"has_guestlist"`
}

// UpdateEventRequest represents the request body for updating an event.
// Only includes mutable fields (host_id is immutable).
type UpdateEventRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	VenueName    *string    `json:"venue_name,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lng          *float64   `json:"lng,omitempty"`
	Category     *string    `json:"category,omitempty"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	FlyerKey     *string    `json:"flyer_key,omitempty"`
	TicketURL    *string    `json:"ticket_url,omitempty"`
	HasGuestlist *bool      `json:"has_guestlist,omitempty"`
}

// EventHandlers holds dependencies for event HTTP handlers.
type EventHandlers struct {
	eventRepo  event.Repository
	socialRepo social.Repository
	notifier   *notification.Service // Optional, can be nil
}

// NewEventHandlers creates a new EventHandlers instance.
// notifier is optional and can be nil if push notifications are not configured.
func NewEventHandlers(eventRepo event.Repository, socialRepo social.Repository, notifier *notification.Service) *EventHandlers {
	return &EventHandlers{
		eventRepo:  eventRepo,
		socialRepo: socialRepo,
		notifier:   notifier,
	}
}

// validateTimeWindow validates that start time is before end time.
// Returns error message if validation fails, empty string if valid.
func validateTimeWindow(startsAt time.Time, endsAt *time.Time) string {
	if endsAt != nil && !startsAt.Before(*endsAt) {
		return "start time must be before end time"
	}
	return ""
}

// resolveLocation validates the lat/lng pair and returns the precise point.
// Both coordinates must be present or both absent.
func resolveLocation(lat, lng *float64) (*geo.Point, string) {
	if lat == nil && lng == nil {
		return nil, ""
	}
	if lat == nil || lng == nil {
		return nil, "lat and lng must be provided together"
	}
	p := geo.Point{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		return nil, "lat must be between -90 and 90 and lng between -180 and 180"
	}
	return &p, ""
}

// CreateEvent handles POST /events - creates a new event.
func (h *EventHandlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetUserID(r.Context())
	if hostID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	title, err := validate.EventTitle(req.Title)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTitle)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTitle, err.Error())
		return
	}

	desc, err := validate.Description(req.Description)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "description: "+err.Error())
		return
	}

	venue := ""
	if strings.TrimSpace(req.VenueName) != "" {
		venue, err = validate.VenueName(req.VenueName)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "venue_name: "+err.Error())
			return
		}
	}

	var category *string
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		c, err := validate.CategoryName(*req.Category)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "category: "+err.Error())
			return
		}
		category = &c
	}

	ticketURL := ""
	if req.TicketURL != "" {
		ticketURL, err = validate.TicketURL(req.TicketURL)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "ticket_url: "+err.Error())
			return
		}
	}

	location, locErr := resolveLocation(req.Lat, req.Lng)
	if locErr != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, locErr)
		return
	}

	if req.StartsAt.IsZero() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "starts_at is required")
		return
	}
	if errMsg := validateTimeWindow(req.StartsAt, req.EndsAt); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTimeRange)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTimeRange, errMsg)
		return
	}

	now := time.Now()
	newEvent := &event.Event{
		ID:           uuid.New().String(),
		HostID:       hostID,
		Title:        title,
		Description:  desc,
		VenueName:    venue,
		Location:     location,
		Category:     category,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		FlyerKey:     req.FlyerKey,
		TicketURL:    ticketURL,
		HasGuestlist: req.HasGuestlist,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if location != nil {
		newEvent.CoarseGeohash = geo.EncodeGeohash(*location, geo.CoarsePrecision)
	}

	if err := h.eventRepo.Create(newEvent); err != nil {
		slog.ErrorContext(r.Context(), "failed to create event", "error", err, "event_id", newEvent.ID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create event")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(newEvent); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event response", "error", err)
	}
}

// eventIDFromPath extracts the event ID segment from /events/{id}[/...].
func eventIDFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/events/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// GetEvent handles GET /events/{id} - retrieves an event.
func (h *EventHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDFromPath(r.URL.Path)
	if eventID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}

	foundEvent, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(foundEvent); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event response", "error", err)
	}
}

// UpdateEvent handles PATCH /events/{id} - updates an existing event.
// Only the hosting user may update their event.
func (h *EventHandlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDFromPath(r.URL.Path)
	if eventID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	existing, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}

	if existing.HostID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the host can update this event")
		return
	}

	updated := existing.Clone()

	if req.Title != nil {
		title, err := validate.EventTitle(*req.Title)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTitle)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTitle, err.Error())
			return
		}
		updated.Title = title
	}

	if req.Description != nil {
		desc, err := validate.Description(*req.Description)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "description: "+err.Error())
			return
		}
		updated.Description = desc
	}

	if req.VenueName != nil {
		if strings.TrimSpace(*req.VenueName) == "" {
			updated.VenueName = ""
		} else {
			venue, err := validate.VenueName(*req.VenueName)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "venue_name: "+err.Error())
				return
			}
			updated.VenueName = venue
		}
	}

	if req.Lat != nil || req.Lng != nil {
		location, locErr := resolveLocation(req.Lat, req.Lng)
		if locErr != "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, locErr)
			return
		}
		updated.Location = location
		updated.CoarseGeohash = ""
		if location != nil {
			updated.CoarseGeohash = geo.EncodeGeohash(*location, geo.CoarsePrecision)
		}
	}

	if req.Category != nil {
		if strings.TrimSpace(*req.Category) == "" {
			updated.Category = nil
		} else {
			c, err := validate.CategoryName(*req.Category)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "category: "+err.Error())
				return
			}
			updated.Category = &c
		}
	}

	if req.FlyerKey != nil {
		updated.FlyerKey = *req.FlyerKey
	}

	if req.TicketURL != nil {
		if *req.TicketURL == "" {
			updated.TicketURL = ""
		} else {
			u, err := validate.TicketURL(*req.TicketURL)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "ticket_url: "+err.Error())
				return
			}
			updated.TicketURL = u
		}
	}

	if req.HasGuestlist != nil {
		updated.HasGuestlist = *req.HasGuestlist
	}

	startsAt := updated.StartsAt
	endsAt := updated.EndsAt
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		endsAt = req.EndsAt
	}
	if errMsg := validateTimeWindow(startsAt, endsAt); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTimeRange)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTimeRange, errMsg)
		return
	}
	updated.StartsAt = startsAt
	updated.EndsAt = endsAt

	updated.UpdatedAt = time.Now()

	if err := h.eventRepo.Update(updated); err != nil {
		if errors.Is(err, event.ErrEventNotFound) || errors.Is(err, event.ErrEventDeleted) {
			writeEventLookupError(w, r, err, eventID)
			return
		}
		slog.ErrorContext(r.Context(), "failed to update event", "error", err, "event_id", eventID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update event")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event response", "error", err)
	}
}

// DeleteEvent handles DELETE /events/{id} - soft-deletes an event.
// Only the hosting user may delete their event.
func (h *EventHandlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDFromPath(r.URL.Path)
	if eventID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	existing, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}

	if existing.HostID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the host can delete this event")
		return
	}

	if err := h.eventRepo.Delete(eventID); err != nil {
		// Delete is idempotent for already-deleted events.
		if !errors.Is(err, event.ErrEventDeleted) {
			if errors.Is(err, event.ErrEventNotFound) {
				writeEventLookupError(w, r, err, eventID)
				return
			}
			slog.ErrorContext(r.Context(), "failed to delete event", "error", err, "event_id", eventID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete event")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Attend handles POST /events/{id}/attend - adds the authenticated user
// to the event's attendee list.
func (h *EventHandlers) Attend(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDFromPath(r.URL.Path)
	if eventID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	if err := h.eventRepo.AddAttendee(eventID, userID); err != nil {
		switch {
		case errors.Is(err, event.ErrAlreadyAttending):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadyAttending)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadyAttending, "You are already attending this event")
		case errors.Is(err, event.ErrEventNotFound), errors.Is(err, event.ErrEventDeleted):
			writeEventLookupError(w, r, err, eventID)
		default:
			slog.ErrorContext(r.Context(), "failed to add attendee", "error", err, "event_id", eventID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to join event")
		}
		return
	}

	h.notifyMutualFollowers(r, eventID, userID)

	updated, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event response", "error", err)
	}
}

// Unattend handles DELETE /events/{id}/attend - removes the authenticated
// user from the event's attendee list.
func (h *EventHandlers) Unattend(w http.ResponseWriter, r *http.Request) {
	eventID := eventIDFromPath(r.URL.Path)
	if eventID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	if err := h.eventRepo.RemoveAttendee(eventID, userID); err != nil {
		switch {
		case errors.Is(err, event.ErrNotAttending):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotAttending)
			WriteError(w, ctx, http.StatusConflict, ErrCodeNotAttending, "You are not attending this event")
		case errors.Is(err, event.ErrEventNotFound), errors.Is(err, event.ErrEventDeleted):
			writeEventLookupError(w, r, err, eventID)
		default:
			slog.ErrorContext(r.Context(), "failed to remove attendee", "error", err, "event_id", eventID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to leave event")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// notifyMutualFollowers pushes a friend-attending notification to every
// mutual follower of the attendee. Failures are logged, never surfaced.
func (h *EventHandlers) notifyMutualFollowers(r *http.Request, eventID, attendeeID string) {
	if h.notifier == nil || h.socialRepo == nil {
		return
	}

	attended, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		slog.WarnContext(r.Context(), "skipping friend-attending notifications", "error", err, "event_id", eventID)
		return
	}

	followers, err := h.socialRepo.FollowerIDs(attendeeID)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to list followers for notifications", "error", err, "user_id", attendeeID)
		return
	}

	for followerID := range followers {
		mutual, err := h.socialRepo.IsMutual(attendeeID, followerID)
		if err != nil || !mutual {
			continue
		}
		if err := h.notifier.FriendAttending(r.Context(), followerID, eventID, attendeeID, attended.Title); err != nil {
			slog.WarnContext(r.Context(), "failed to send friend-attending notification", "error", err, "user_id", followerID)
		}
	}
}

// writeEventLookupError maps event repository lookup errors to responses.
func writeEventLookupError(w http.ResponseWriter, r *http.Request, err error, eventID string) {
	switch {
	case errors.Is(err, event.ErrEventNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeEventNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeEventNotFound, "Event not found")
	case errors.Is(err, event.ErrEventDeleted):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeEventDeleted)
		WriteError(w, ctx, http.StatusGone, ErrCodeEventDeleted, "Event has been deleted")
	default:
		slog.ErrorContext(r.Context(), "failed to get event", "error", err, "event_id", eventID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve event")
	}
}

// parseFloat parses a float64 from a string with contextual error message.
func parseFloat(s, fieldName string) (float64, error) {
	s = strings.TrimSpace(s)
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number", fieldName)
	}
	return val, nil
}

// parseIntInRange parses an integer from a string with range validation.
func parseIntInRange(s, fieldName string, min, max int) (int, error) {
	s = strings.TrimSpace(s)
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer", fieldName)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%s must be between %d and %d", fieldName, min, max)
	}
	return val, nil
}
