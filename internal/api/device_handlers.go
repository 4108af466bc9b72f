package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/notification"
)

// DeviceHandlers holds dependencies for device-token HTTP handlers.
type DeviceHandlers struct {
	tokenRepo notification.TokenRepository
}

// NewDeviceHandlers creates a new DeviceHandlers instance.
func NewDeviceHandlers(tokenRepo notification.TokenRepository) *DeviceHandlers {
	return &DeviceHandlers{tokenRepo: tokenRepo}
}

// RegisterDeviceRequest represents the request body for registering a device.
type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Register handles POST /devices - registers an FCM device token for the
// authenticated user. Re-registering an existing token moves it to the new
// user.
func (h *DeviceHandlers) Register(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.Token) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "token is required")
		return
	}
	if req.Platform != "ios" && req.Platform != "android" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "platform must be ios or android")
		return
	}

	deviceToken := &notification.DeviceToken{
		UserID:    userID,
		Token:     req.Token,
		Platform:  req.Platform,
		CreatedAt: time.Now(),
	}
	if err := h.tokenRepo.Register(deviceToken); err != nil {
		slog.ErrorContext(r.Context(), "failed to register device token", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to register device")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(deviceToken); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode device response", "error", err)
	}
}

// Remove handles DELETE /devices/{token} - removes a device token,
// typically on logout.
func (h *DeviceHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/devices/")
	if token == "" || strings.Contains(token, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Device token is required")
		return
	}

	if err := h.tokenRepo.Remove(token); err != nil {
		if errors.Is(err, notification.ErrTokenNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Device token not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to remove device token", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to remove device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
