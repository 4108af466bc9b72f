package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/guestlist"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/notification"
	"github.com/afterdark-app/afterdark/internal/validate"
)

// GuestlistHandlers holds dependencies for guestlist HTTP handlers.
type GuestlistHandlers struct {
	guestlistRepo guestlist.Repository
	eventRepo     event.Repository
	notifier      *notification.Service // Optional, can be nil
}

// NewGuestlistHandlers creates a new GuestlistHandlers instance.
// notifier is optional and can be nil if push notifications are not configured.
func NewGuestlistHandlers(guestlistRepo guestlist.Repository, eventRepo event.Repository, notifier *notification.Service) *GuestlistHandlers {
	return &GuestlistHandlers{
		guestlistRepo: guestlistRepo,
		eventRepo:     eventRepo,
		notifier:      notifier,
	}
}

// GuestlistRequestBody represents the request body for joining a guestlist.
type GuestlistRequestBody struct {
	Note string `json:"note,omitempty"`
}

// DecideRequestBody represents the request body for deciding an entry.
type DecideRequestBody struct {
	Status string `json:"status"`
}

// GuestlistResponse represents a list of guestlist entries.
type GuestlistResponse struct {
	Entries []*guestlist.Entry `json:"entries"`
}

// Request handles POST /events/{id}/guestlist - requests a guestlist spot.
// Idempotent: repeating a request returns the existing entry unchanged.
func (h *GuestlistHandlers) Request(w http.ResponseWriter, r *http.Request) {
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

	var req GuestlistRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	note := validate.SanitizeHTML(strings.TrimSpace(req.Note))

	target, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}
	if !target.HasGuestlist {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "This event does not have a guestlist")
		return
	}

	entry, err := h.guestlistRepo.Request(eventID, userID, note)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create guestlist entry", "error", err, "event_id", eventID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to request guestlist spot")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode guestlist entry", "error", err)
	}
}

// List handles GET /events/{id}/guestlist - lists entries for an event.
// Only the hosting user may view the list. Optional ?status= filter.
func (h *GuestlistHandlers) List(w http.ResponseWriter, r *http.Request) {
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

	target, err := h.eventRepo.GetByID(eventID)
	if err != nil {
		writeEventLookupError(w, r, err, eventID)
		return
	}
	if target.HostID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the host can view the guestlist")
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", guestlist.StatusPending, guestlist.StatusApproved, guestlist.StatusDenied:
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be one of: pending, approved, denied")
		return
	}

	entries, err := h.guestlistRepo.ListByEvent(eventID, status)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list guestlist entries", "error", err, "event_id", eventID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list guestlist entries")
		return
	}
	if entries == nil {
		entries = []*guestlist.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(GuestlistResponse{Entries: entries}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode guestlist response", "error", err)
	}
}

// guestlistEntryIDFromPath extracts the entry ID from /guestlist/{id}[/...].
func guestlistEntryIDFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/guestlist/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// Get handles GET /guestlist/{id} - retrieves a single entry.
// Visible to the requesting user and the event host only.
func (h *GuestlistHandlers) Get(w http.ResponseWriter, r *http.Request) {
	entryID := guestlistEntryIDFromPath(r.URL.Path)
	if entryID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Entry ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	entry, err := h.guestlistRepo.GetByID(entryID)
	if err != nil {
		if errors.Is(err, guestlist.ErrEntryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Guestlist entry not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get guestlist entry", "error", err, "entry_id", entryID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve guestlist entry")
		return
	}

	if entry.UserID != userID {
		target, err := h.eventRepo.GetByID(entry.EventID)
		if err != nil || target.HostID != userID {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You cannot view this guestlist entry")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(entry); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode guestlist entry", "error", err)
	}
}

// Decide handles POST /guestlist/{id}/decide - approves or denies an entry.
// Only the hosting user may decide, and each entry is decided exactly once.
func (h *GuestlistHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	entryID := guestlistEntryIDFromPath(r.URL.Path)
	if entryID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Entry ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req DecideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.Status != guestlist.StatusApproved && req.Status != guestlist.StatusDenied {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be approved or denied")
		return
	}

	entry, err := h.guestlistRepo.GetByID(entryID)
	if err != nil {
		if errors.Is(err, guestlist.ErrEntryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Guestlist entry not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get guestlist entry", "error", err, "entry_id", entryID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve guestlist entry")
		return
	}

	target, err := h.eventRepo.GetByID(entry.EventID)
	if err != nil {
		writeEventLookupError(w, r, err, entry.EventID)
		return
	}
	if target.HostID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the host can decide guestlist entries")
		return
	}

	decided, err := h.guestlistRepo.Decide(entryID, req.Status, userID)
	if err != nil {
		switch {
		case errors.Is(err, guestlist.ErrAlreadyDecided):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadyDecided)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadyDecided, "This entry has already been decided")
		case errors.Is(err, guestlist.ErrInvalidStatus):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be approved or denied")
		default:
			slog.ErrorContext(r.Context(), "failed to decide guestlist entry", "error", err, "entry_id", entryID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to decide guestlist entry")
		}
		return
	}

	if h.notifier != nil {
		if err := h.notifier.GuestlistDecided(r.Context(), decided.UserID, target.ID, target.Title, decided.Status); err != nil {
			slog.WarnContext(r.Context(), "failed to send guestlist notification", "error", err, "user_id", decided.UserID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(decided); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode guestlist entry", "error", err)
	}
}
