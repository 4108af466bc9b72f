// Package payment provides models and services for payment processing.
package payment

import "time"

// PaymentStatus represents the status of a payment record.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Purchase purposes.
const (
	PurposeEventBoost = "event_boost" // featured placement in discovery
	PurposeGuestlist  = "guestlist"   // paid guestlist spot
)

// PaymentRecord represents a provisional payment record for a Stripe Checkout Session.
type PaymentRecord struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"` // Stripe Checkout Session ID
	Status    string     `json:"status"`     // pending, succeeded, failed, canceled
	Amount    int64      `json:"amount"`     // Total amount in cents
	Purpose   string     `json:"purpose"`    // event_boost or guestlist
	UserID    string     `json:"user_id"`    // User making the payment
	EventID   string     `json:"event_id"`   // Event the purchase applies to
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
