package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a ranked feed snapshot stays valid. Short on
// purpose: attendee counts and new listings move quickly on a Friday night.
const DefaultCacheTTL = 2 * time.Minute

// ErrCacheMiss is returned when no snapshot exists for the viewer.
var ErrCacheMiss = errors.New("feed snapshot not cached")

// snapshot is the CBOR envelope stored in Redis.
type snapshot struct {
	RankedAt time.Time     `cbor:"ranked_at"`
	Feed     []ScoredEvent `cbor:"feed"`
}

// EncodeSnapshot serializes a ranked feed to CBOR.
// CBOR keeps snapshots roughly a third smaller than JSON on typical feeds,
// which matters because snapshots are written on every feed recompute.
func EncodeSnapshot(rankedAt time.Time, ranked []ScoredEvent) ([]byte, error) {
	data, err := cbor.Marshal(snapshot{RankedAt: rankedAt, Feed: ranked})
	if err != nil {
		return nil, fmt.Errorf("encode feed snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot deserializes a CBOR feed snapshot.
func DecodeSnapshot(data []byte) (time.Time, []ScoredEvent, error) {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return time.Time{}, nil, fmt.Errorf("decode feed snapshot: %w", err)
	}
	return snap.RankedAt, snap.Feed, nil
}

// Cache memoizes ranked feed snapshots per viewer in Redis.
// This is strictly a caller-side optimization: Rank stays pure, and a cache
// failure only costs a recompute, so read errors degrade to a miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a feed cache. ttl <= 0 falls back to DefaultCacheTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(viewerID string) string {
	return "feed:snapshot:" + viewerID
}

// Get returns the cached snapshot for a viewer, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, viewerID string) ([]ScoredEvent, error) {
	data, err := c.client.Get(ctx, cacheKey(viewerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read feed snapshot: %w", err)
	}

	_, ranked, err := DecodeSnapshot(data)
	if err != nil {
		// A corrupt snapshot is treated as a miss; the next Set overwrites it.
		return nil, ErrCacheMiss
	}
	return ranked, nil
}

// Set stores a ranked snapshot for a viewer.
func (c *Cache) Set(ctx context.Context, viewerID string, ranked []ScoredEvent) error {
	data, err := EncodeSnapshot(time.Now().UTC(), ranked)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(viewerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write feed snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the viewer's snapshot, e.g. after they update interests.
func (c *Cache) Invalidate(ctx context.Context, viewerID string) error {
	if err := c.client.Del(ctx, cacheKey(viewerID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed snapshot: %w", err)
	}
	return nil
}
