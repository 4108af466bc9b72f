// Package idempotency stores per-key response snapshots so that retried
// requests (currently checkout creation) replay the original response
// instead of running twice.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// StatusProcessing is reserved for in-flight markers; the database CHECK
// constraint on idempotency_keys.status lists it, so keep it in sync with
// the migrations even while only StatusCompleted is written.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to create a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// IdempotencyKey is a stored key together with the response it produced.
type IdempotencyKey struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	PaymentID          *string   `json:"payment_id,omitempty"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
}

// ValidateKey rejects empty keys and keys longer than MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash returns the hex SHA-256 of a response body, used to
// detect a corrupted snapshot before replaying it.
func ComputeResponseHash(responseBody string) string {
	sum := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(sum[:])
}

// Repository persists idempotency keys.
type Repository interface {
	// Get returns the stored key, or ErrKeyNotFound.
	Get(key string) (*IdempotencyKey, error)

	// Store saves a new key, or returns ErrKeyExists on duplicates.
	Store(record *IdempotencyKey) error

	// DeleteOlderThan removes keys older than the given age and reports
	// how many were removed.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
