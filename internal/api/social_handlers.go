package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/social"
)

// SocialHandlers holds dependencies for follow-graph HTTP handlers.
type SocialHandlers struct {
	socialRepo social.Repository
}

// NewSocialHandlers creates a new SocialHandlers instance.
func NewSocialHandlers(socialRepo social.Repository) *SocialHandlers {
	return &SocialHandlers{socialRepo: socialRepo}
}

// UserListResponse represents a list of user IDs.
type UserListResponse struct {
	Users []string `json:"users"`
}

// userPathParts splits /users/{id}[/action] into its segments.
func userPathParts(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/users/"), "/")
}

// Follow handles POST /users/{id}/follow - follows the target user.
// Idempotent: re-following an already-followed user succeeds.
func (h *SocialHandlers) Follow(w http.ResponseWriter, r *http.Request) {
	parts := userPathParts(r.URL.Path)
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}
	targetID := parts[0]

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	if err := h.socialRepo.Follow(userID, targetID); err != nil {
		if errors.Is(err, social.ErrSelfFollow) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSelfFollow)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeSelfFollow, "You cannot follow yourself")
			return
		}
		slog.ErrorContext(r.Context(), "failed to follow user", "error", err, "target_id", targetID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to follow user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfollow handles DELETE /users/{id}/follow - removes the follow edge.
func (h *SocialHandlers) Unfollow(w http.ResponseWriter, r *http.Request) {
	parts := userPathParts(r.URL.Path)
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}
	targetID := parts[0]

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	if err := h.socialRepo.Unfollow(userID, targetID); err != nil {
		if errors.Is(err, social.ErrNotFollowing) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFollowing)
			WriteError(w, ctx, http.StatusConflict, ErrCodeNotFollowing, "You are not following this user")
			return
		}
		slog.ErrorContext(r.Context(), "failed to unfollow user", "error", err, "target_id", targetID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to unfollow user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Followers handles GET /users/{id}/followers - lists the user's followers.
func (h *SocialHandlers) Followers(w http.ResponseWriter, r *http.Request) {
	parts := userPathParts(r.URL.Path)
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	ids, err := h.socialRepo.FollowerIDs(parts[0])
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list followers", "error", err, "user_id", parts[0])
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list followers")
		return
	}

	writeUserList(w, r, ids)
}

// Following handles GET /users/{id}/following - lists who the user follows.
func (h *SocialHandlers) Following(w http.ResponseWriter, r *http.Request) {
	parts := userPathParts(r.URL.Path)
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	ids, err := h.socialRepo.FollowedIDs(parts[0])
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list following", "error", err, "user_id", parts[0])
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list following")
		return
	}

	writeUserList(w, r, ids)
}

// Friends handles GET /users/{id}/friends - lists mutual follows.
// Mutual follows gate direct messaging.
func (h *SocialHandlers) Friends(w http.ResponseWriter, r *http.Request) {
	parts := userPathParts(r.URL.Path)
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}
	targetID := parts[0]

	followed, err := h.socialRepo.FollowedIDs(targetID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list friends", "error", err, "user_id", targetID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list friends")
		return
	}

	mutuals := make(map[string]struct{}, len(followed))
	for otherID := range followed {
		mutual, err := h.socialRepo.IsMutual(targetID, otherID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to check mutual follow", "error", err, "user_id", targetID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list friends")
			return
		}
		if mutual {
			mutuals[otherID] = struct{}{}
		}
	}

	writeUserList(w, r, mutuals)
}

func writeUserList(w http.ResponseWriter, r *http.Request, ids map[string]struct{}) {
	users := make([]string, 0, len(ids))
	for id := range ids {
		users = append(users, id)
	}
	sort.Strings(users)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(UserListResponse{Users: users}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode user list", "error", err)
	}
}
