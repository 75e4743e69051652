package activities

import (
	"context"
	"fmt"

	"fpg-order-system/checkout"
	"fpg-order-system/models"

	"go.temporal.io/sdk/activity"
)

// PaymentGateway is the payment collaborator used during checkout.
type PaymentGateway interface {
	Capture(ctx context.Context, req models.CaptureRequest) models.CaptureResult
	OrderStatus(ctx context.Context, orderNumber string) (models.OrderStatusResponse, error)
}

// OrderQueue accepts order email work.
type OrderQueue interface {
	Enqueue(ctx context.Context, payload models.OrderPayload) bool
}

// SessionStore persists what the confirmation page reads back.
type SessionStore interface {
	SaveSummary(ctx context.Context, summary models.OrderSummary) error
	MarkCompleting(ctx context.Context, orderNumber string) error
}

// CheckoutActivities contains the side effects of the checkout workflow
type CheckoutActivities struct {
	gateway  PaymentGateway
	queue    OrderQueue
	sessions SessionStore
}

// NewCheckoutActivities creates a new CheckoutActivities instance
func NewCheckoutActivities(gateway PaymentGateway, queue OrderQueue, sessions SessionStore) *CheckoutActivities {
	return &CheckoutActivities{
		gateway:  gateway,
		queue:    queue,
		sessions: sessions,
	}
}

// CaptureOrder captures the approved PayPal order. The outcome is classified rather than
// returned as an error, so the workflow can tell a rejection from an unknown result.
func (a *CheckoutActivities) CaptureOrder(ctx context.Context, req models.CaptureRequest) (models.CaptureResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Capturing payment", "order_number", req.OrderNumber, "paypal_order_id", req.OrderID, "developer_mode", req.IsDeveloperMode)

	activity.RecordHeartbeat(ctx, "calling capture-order")
	result := a.gateway.Capture(ctx, req)

	switch result.Outcome {
	case models.CaptureCaptured:
		logger.Info("Payment captured", "order_number", req.OrderNumber, "capture_id", result.PayPalCaptureID)
	case models.CaptureRejected:
		logger.Warn("Payment rejected", "order_number", req.OrderNumber, "status", result.StatusCode, "message", result.Message)
	default:
		logger.Warn("Payment outcome unknown", "order_number", req.OrderNumber, "status", result.StatusCode, "message", result.Message)
	}
	return result, nil
}

// PollOrderStatus asks the source of truth whether an order went through.
func (a *CheckoutActivities) PollOrderStatus(ctx context.Context, orderNumber string) (models.OrderStatusResponse, error) {
	logger := activity.GetLogger(ctx)

	status, err := a.gateway.OrderStatus(ctx, orderNumber)
	if err != nil {
		logger.Warn("Order status poll failed", "order_number", orderNumber, "error", err)
		return models.OrderStatusResponse{}, fmt.Errorf("order status poll failed: %w", err)
	}

	logger.Info("Order status polled", "order_number", orderNumber, "status", status.Status)
	return status, nil
}

// EnqueueOrderEmail hands the order to the email queue. Queue failures are reported as false
// and never fail the activity.
func (a *CheckoutActivities) EnqueueOrderEmail(ctx context.Context, payload models.OrderPayload) (bool, error) {
	logger := activity.GetLogger(ctx)

	queued := a.queue.Enqueue(ctx, payload)
	if !queued {
		logger.Error("Order email was not queued", "order_number", payload.OrderNumber)
		return false, nil
	}

	logger.Info("Order email queued", "order_number", payload.OrderNumber, "testing_mode", payload.TestingMode)
	return true, nil
}

// FinalizeCheckout stores the attachment-free summary and sets the completing marker. The
// persisted cart stays until it expires: the confirmation page reads PDFs back from it.
func (a *CheckoutActivities) FinalizeCheckout(ctx context.Context, payload models.OrderPayload) error {
	logger := activity.GetLogger(ctx)

	if err := a.sessions.SaveSummary(ctx, checkout.BuildSummary(payload)); err != nil {
		return fmt.Errorf("failed to save order summary: %w", err)
	}
	if err := a.sessions.MarkCompleting(ctx, payload.OrderNumber); err != nil {
		return fmt.Errorf("failed to set completing marker: %w", err)
	}

	logger.Info("Checkout finalized", "order_number", payload.OrderNumber)
	return nil
}
