package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/payment"
)

// WebhookHandlers holds dependencies for webhook-related HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	paymentRepo   payment.PaymentRepository
	webhookRepo   payment.WebhookRepository
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(
	webhookSecret string,
	paymentRepo payment.PaymentRepository,
	webhookRepo payment.WebhookRepository,
) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		paymentRepo:   paymentRepo,
		webhookRepo:   webhookRepo,
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	// Stripe retries delivery, so duplicates are expected.
	if err := h.webhookRepo.RecordEvent(event.ID, string(event.Type)); err != nil {
		if errors.Is(err, payment.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutSessionCompleted(ctx, event)
	case "checkout.session.expired":
		h.handleCheckoutSessionEnded(ctx, event, payment.StatusCanceled)
	case "checkout.session.async_payment_succeeded":
		h.handleCheckoutSessionEnded(ctx, event, payment.StatusSucceeded)
	case "checkout.session.async_payment_failed":
		h.handleCheckoutSessionEnded(ctx, event, payment.StatusFailed)
	default:
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
	}

	// Always return 200 to acknowledge receipt
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutSessionCompleted processes checkout.session.completed events.
// Delayed payment methods complete with payment_status "unpaid"; those stay
// pending until the async_payment event arrives.
func (h *WebhookHandlers) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		slog.InfoContext(ctx, "checkout session completed but not yet paid",
			"session_id", session.ID,
			"payment_status", session.PaymentStatus)
		return
	}

	h.updateSessionStatus(ctx, session.ID, payment.StatusSucceeded)
}

// handleCheckoutSessionEnded resolves a session to a terminal status.
func (h *WebhookHandlers) handleCheckoutSessionEnded(ctx context.Context, event stripe.Event, status string) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	h.updateSessionStatus(ctx, session.ID, status)
}

// updateSessionStatus moves the payment record for a session to status.
// Records already in a terminal state are left untouched so out-of-order
// deliveries cannot regress a payment.
func (h *WebhookHandlers) updateSessionStatus(ctx context.Context, sessionID, status string) {
	record, err := h.paymentRepo.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentRecordNotFound) {
			slog.WarnContext(ctx, "no payment record for webhook session", "session_id", sessionID)
			return
		}
		slog.ErrorContext(ctx, "failed to get payment record", "session_id", sessionID, "error", err)
		return
	}

	if record.Status != payment.StatusPending {
		slog.InfoContext(ctx, "payment already resolved, ignoring status update",
			"session_id", sessionID,
			"current_status", record.Status,
			"new_status", status)
		return
	}

	record.Status = status
	now := time.Now()
	record.UpdatedAt = &now

	if err := h.paymentRepo.Update(record); err != nil {
		slog.ErrorContext(ctx, "failed to update payment record", "session_id", sessionID, "error", err)
		return
	}

	slog.InfoContext(ctx, "payment status updated",
		"session_id", sessionID,
		"status", status,
		"amount", record.Amount,
		"purpose", record.Purpose)
}
