// Package social provides the follow graph: who follows whom, mutual
// checks for DM gating, and the followed-ID sets consumed by discovery's
// friends-attending filter.
package social

import (
	"errors"
	"sync"
	"time"
)

// Common errors for follow operations.
var (
	ErrSelfFollow   = errors.New("users cannot follow themselves")
	ErrNotFollowing = errors.New("user is not following the target")
)

// Follow represents one directed edge in the follow graph.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository defines the interface for follow-graph operations.
type Repository interface {
	// Follow creates a directed edge. Idempotent: re-following is a no-op.
	Follow(followerID, followeeID string) error

	// Unfollow removes a directed edge. Returns ErrNotFollowing when the
	// edge does not exist.
	Unfollow(followerID, followeeID string) error

	// IsFollowing reports whether follower follows followee.
	IsFollowing(followerID, followeeID string) (bool, error)

	// IsMutual reports whether both directions of the edge exist.
	// Mutual follows gate direct messaging and guestlist invitations.
	IsMutual(userA, userB string) (bool, error)

	// FollowedIDs returns the set of user IDs the user follows.
	FollowedIDs(userID string) (map[string]struct{}, error)

	// FollowerIDs returns the set of user IDs following the user.
	FollowerIDs(userID string) (map[string]struct{}, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	following map[string]map[string]struct{} // follower -> followees
	followers map[string]map[string]struct{} // followee -> followers
}

// NewInMemoryRepository creates a new in-memory follow repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		following: make(map[string]map[string]struct{}),
		followers: make(map[string]map[string]struct{}),
	}
}

// Follow creates a directed edge. Idempotent.
func (r *InMemoryRepository) Follow(followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.following[followerID] == nil {
		r.following[followerID] = make(map[string]struct{})
	}
	if r.followers[followeeID] == nil {
		r.followers[followeeID] = make(map[string]struct{})
	}
	r.following[followerID][followeeID] = struct{}{}
	r.followers[followeeID][followerID] = struct{}{}
	return nil
}

// Unfollow removes a directed edge.
func (r *InMemoryRepository) Unfollow(followerID, followeeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.following[followerID][followeeID]; !ok {
		return ErrNotFollowing
	}
	delete(r.following[followerID], followeeID)
	delete(r.followers[followeeID], followerID)
	return nil
}

// IsFollowing reports whether follower follows followee.
func (r *InMemoryRepository) IsFollowing(followerID, followeeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.following[followerID][followeeID]
	return ok, nil
}

// IsMutual reports whether both directions of the edge exist.
func (r *InMemoryRepository) IsMutual(userA, userB string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.following[userA][userB]; !ok {
		return false, nil
	}
	_, ok := r.following[userB][userA]
	return ok, nil
}

// FollowedIDs returns a copy of the set of user IDs the user follows.
func (r *InMemoryRepository) FollowedIDs(userID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{}, len(r.following[userID]))
	for id := range r.following[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// FollowerIDs returns a copy of the set of user IDs following the user.
func (r *InMemoryRepository) FollowerIDs(userID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{}, len(r.followers[userID]))
	for id := range r.followers[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}
