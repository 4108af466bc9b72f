package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/payment"
)

// PaymentHandlers holds dependencies for payment-related HTTP handlers.
type PaymentHandlers struct {
	eventRepo    event.Repository
	paymentRepo  payment.PaymentRepository
	stripeClient payment.Client
	boostPriceID string
}

// NewPaymentHandlers creates a new PaymentHandlers instance.
// boostPriceID is the Stripe price used for event boost purchases.
func NewPaymentHandlers(
	eventRepo event.Repository,
	paymentRepo payment.PaymentRepository,
	stripeClient payment.Client,
	boostPriceID string,
) *PaymentHandlers {
	return &PaymentHandlers{
		eventRepo:    eventRepo,
		paymentRepo:  paymentRepo,
		stripeClient: stripeClient,
		boostPriceID: boostPriceID,
	}
}

// CheckoutSessionRequest represents the request body for creating a Stripe
// Checkout Session.
type CheckoutSessionRequest struct {
	EventID    string `json:"event_id"`
	Purpose    string `json:"purpose"`
	PriceID    string `json:"price_id,omitempty"`
	Quantity   int64  `json:"quantity,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CheckoutSessionResponse represents the response for a successful checkout
// session creation.
type CheckoutSessionResponse struct {
	SessionURL string `json:"session_url"`
	SessionID  string `json:"session_id"`
}

// PaymentsResponse represents the response for listing a user's payments.
type PaymentsResponse struct {
	Payments []*payment.PaymentRecord `json:"payments"`
}

// CreateCheckoutSession creates a Stripe Checkout Session for an event boost
// or paid guestlist spot and records a provisional payment.
// POST /payments/checkout
func (h *PaymentHandlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req CheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.EventID) == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "event_id is required")
		return
	}
	if req.Purpose != payment.PurposeEventBoost && req.Purpose != payment.PurposeGuestlist {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "purpose must be event_boost or guestlist")
		return
	}
	if req.SuccessURL == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "success_url is required")
		return
	}
	if req.CancelURL == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "cancel_url is required")
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > 100 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "quantity must be between 1 and 100")
		return
	}

	priceID := req.PriceID
	if priceID == "" {
		priceID = h.boostPriceID
	}
	if priceID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "price_id is required")
		return
	}

	target, err := h.eventRepo.GetByID(req.EventID)
	if err != nil {
		writeEventLookupError(w, r, err, req.EventID)
		return
	}

	// Boosts can only be bought by the host; guestlist spots by anyone.
	if req.Purpose == payment.PurposeEventBoost && target.HostID != userID {
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "only the host can boost an event")
		return
	}

	session, err := h.stripeClient.CreateCheckoutSession(&payment.CheckoutSessionParams{
		PriceID:    priceID,
		Quantity:   quantity,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		UserID:     userID,
		EventID:    req.EventID,
		Purpose:    req.Purpose,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create checkout session", "event_id", req.EventID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create checkout session")
		return
	}

	record := &payment.PaymentRecord{
		SessionID: session.ID,
		Status:    payment.StatusPending,
		Amount:    session.AmountTotal,
		Purpose:   req.Purpose,
		UserID:    userID,
		EventID:   req.EventID,
	}
	if err := h.paymentRepo.Insert(record); err != nil {
		slog.ErrorContext(ctx, "failed to insert payment record", "session_id", session.ID, "error", err)
		// Not a critical failure; the webhook reconciles the final state.
	}

	response := CheckoutSessionResponse{
		SessionURL: session.URL,
		SessionID:  session.ID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// ListPayments returns the authenticated user's payment records, newest
// first.
// GET /payments
func (h *PaymentHandlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	records, err := h.paymentRepo.ListByUser(userID)
	if err != nil {
		if !errors.Is(err, payment.ErrPaymentRecordNotFound) {
			slog.ErrorContext(ctx, "failed to list payments", "user_id", userID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list payments")
			return
		}
	}
	if records == nil {
		records = []*payment.PaymentRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(PaymentsResponse{Payments: records}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
