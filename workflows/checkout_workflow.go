package workflows

import (
	"errors"
	"fmt"
	"time"

	"fpg-order-system/activities"
	"fpg-order-system/checkout"
	"fpg-order-system/models"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// TaskQueueName is shared by the worker and every client that starts workflows.
	TaskQueueName = "fpg-checkout-queue"

	CheckoutWorkflowName = "CheckoutWorkflow"

	SignalShippingDetails = "shipping-details"
	SignalEditShipping    = "edit-shipping"
	SignalPayPalApproved  = "paypal-approved"
	SignalPayPalCancelled = "paypal-cancelled"
	SignalPayPalError     = "paypal-error"
	SignalRetry           = "retry"
	QueryState            = "state"
)

// CheckoutWorkflowID is the workflow id of the checkout for an order.
func CheckoutWorkflowID(orderNumber string) string {
	return fmt.Sprintf("checkout-%s", orderNumber)
}

// CheckoutInput starts a checkout
type CheckoutInput struct {
	OrderNumber     string            `json:"orderNumber"`
	Items           []models.LineItem `json:"items"`
	Shipping        decimal.Decimal   `json:"shipping"`
	IsDeveloperMode bool              `json:"isDeveloperMode"`
}

// ApprovalSignal is sent when the customer approves the payment in PayPal
type ApprovalSignal struct {
	PayPalOrderID string `json:"paypalOrderID"`
	PayerID       string `json:"payerID"`
}

// WidgetErrorSignal is sent when the PayPal widget fails
type WidgetErrorSignal struct {
	Message string `json:"message"`
}

// CheckoutResult is returned when a checkout ends
type CheckoutResult struct {
	OrderNumber     string          `json:"orderNumber"`
	Status          checkout.Status `json:"status"`
	PayPalCaptureID string          `json:"paypalCaptureID,omitempty"`
	Error           string          `json:"error,omitempty"`
	EmailQueued     bool            `json:"emailQueued"`
	Expired         bool            `json:"expired"`
}

// CheckoutWorkflow drives one checkout from shipping details to a captured or failed payment.
// It ends when the session reaches an absorbing state or after CartTTL without any signal.
func CheckoutWorkflow(ctx workflow.Context, input CheckoutInput) (CheckoutResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("CheckoutWorkflow started", "order_number", input.OrderNumber, "developer_mode", input.IsDeveloperMode)

	state := checkout.NewSession(input.OrderNumber, input.Items, input.Shipping, input.IsDeveloperMode)
	emailQueued := false

	err := workflow.SetQueryHandler(ctx, QueryState, func() (checkout.Session, error) {
		return state, nil
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("failed to set query handler: %w", err)
	}

	shippingChan := workflow.GetSignalChannel(ctx, SignalShippingDetails)
	editChan := workflow.GetSignalChannel(ctx, SignalEditShipping)
	approvedChan := workflow.GetSignalChannel(ctx, SignalPayPalApproved)
	cancelledChan := workflow.GetSignalChannel(ctx, SignalPayPalCancelled)
	widgetErrChan := workflow.GetSignalChannel(ctx, SignalPayPalError)
	retryChan := workflow.GetSignalChannel(ctx, SignalRetry)

	var act *activities.CheckoutActivities

	apply := func(ev checkout.Event) bool {
		next, err := checkout.Transition(state, ev)
		if err != nil {
			logger.Warn("Checkout event rejected", "order_number", state.OrderNumber, "event", ev.Type, "status", state.Status, "error", err)
			if errors.Is(err, checkout.ErrInvalidShipping) {
				state.Error = err.Error()
			}
			return false
		}
		logger.Info("Checkout transition", "order_number", state.OrderNumber, "event", ev.Type, "from", state.Status, "to", next.Status)
		state = next
		return true
	}

	complete := func(evType checkout.EventType, captureID string) {
		payload := checkout.BuildOrderPayload(state, captureID)
		if !apply(checkout.Event{Type: evType, PayPalCaptureID: captureID}) {
			return
		}
		emailQueued = finishOrder(ctx, act, payload)
	}

	capture := func() {
		req, err := checkout.BuildCaptureRequest(state)
		if err != nil {
			logger.Error("Cannot build capture request", "order_number", state.OrderNumber, "error", err)
			apply(checkout.Event{Type: checkout.EventCaptureRejected, Message: "Checkout details are incomplete"})
			return
		}

		captureCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: checkout.CaptureTimeout + 5*time.Second,
			RetryPolicy: &temporal.RetryPolicy{
				MaximumAttempts: 1,
			},
		})

		var result models.CaptureResult
		err = workflow.ExecuteActivity(captureCtx, act.CaptureOrder, req).Get(ctx, &result)
		if err != nil {
			// the call may have reached PayPal
			logger.Warn("Capture activity failed", "order_number", state.OrderNumber, "error", err)
			result = models.CaptureResult{Outcome: models.CaptureAmbiguous, Message: err.Error()}
		}

		switch result.Outcome {
		case models.CaptureCaptured:
			complete(checkout.EventCaptureSucceeded, result.PayPalCaptureID)
		case models.CaptureRejected:
			apply(checkout.Event{Type: checkout.EventCaptureRejected, Message: result.Message})
		default:
			if apply(checkout.Event{Type: checkout.EventCaptureAmbiguous}) {
				reconcile(ctx, act, &state, apply, complete)
			}
		}
	}

	for !state.Absorbing() {
		var ev *checkout.Event
		expired := false

		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		inactivity := workflow.NewTimer(timerCtx, checkout.CartTTL)

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(shippingChan, func(c workflow.ReceiveChannel, more bool) {
			var details models.UserDetails
			c.Receive(ctx, &details)
			ev = &checkout.Event{Type: checkout.EventSubmitShipping, Shipping: &details}
		})
		selector.AddReceive(editChan, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, nil)
			ev = &checkout.Event{Type: checkout.EventEditShipping}
		})
		selector.AddReceive(approvedChan, func(c workflow.ReceiveChannel, more bool) {
			var approval ApprovalSignal
			c.Receive(ctx, &approval)
			ev = &checkout.Event{Type: checkout.EventApprove, PayPalOrderID: approval.PayPalOrderID, PayerID: approval.PayerID}
		})
		selector.AddReceive(cancelledChan, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, nil)
			ev = &checkout.Event{Type: checkout.EventCancel}
		})
		selector.AddReceive(widgetErrChan, func(c workflow.ReceiveChannel, more bool) {
			var sig WidgetErrorSignal
			c.Receive(ctx, &sig)
			ev = &checkout.Event{Type: checkout.EventWidgetError, Message: sig.Message}
		})
		selector.AddReceive(retryChan, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, nil)
			ev = &checkout.Event{Type: checkout.EventRetry}
		})
		selector.AddFuture(inactivity, func(f workflow.Future) {
			expired = true
		})

		selector.Select(ctx)
		cancelTimer()

		if expired {
			logger.Info("Checkout expired without activity", "order_number", state.OrderNumber, "status", state.Status)
			return resultOf(state, emailQueued, true), nil
		}

		if ev.Type == checkout.EventWidgetError && ev.Message != "" {
			logger.Warn("PayPal widget error", "order_number", state.OrderNumber, "message", ev.Message)
		}
		if !apply(*ev) {
			continue
		}
		if ev.Type == checkout.EventApprove {
			capture()
		}
	}

	logger.Info("CheckoutWorkflow completed", "order_number", state.OrderNumber, "status", state.Status, "email_queued", emailQueued)
	return resultOf(state, emailQueued, false), nil
}

// reconcile polls the order-status endpoint at a fixed interval until it reports an outcome
// or the attempts run out. It cannot be interrupted by signals.
func reconcile(
	ctx workflow.Context,
	act *activities.CheckoutActivities,
	state *checkout.Session,
	apply func(checkout.Event) bool,
	complete func(checkout.EventType, string),
) {
	logger := workflow.GetLogger(ctx)

	pollCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	for attempt := 1; attempt <= checkout.MaxPollAttempts; attempt++ {
		if err := workflow.Sleep(ctx, checkout.PollInterval); err != nil {
			logger.Warn("Poll wait interrupted", "order_number", state.OrderNumber, "error", err)
		}
		state.PollAttempts = attempt

		var status models.OrderStatusResponse
		if err := workflow.ExecuteActivity(pollCtx, act.PollOrderStatus, state.OrderNumber).Get(ctx, &status); err != nil {
			logger.Warn("Order status unknown", "order_number", state.OrderNumber, "attempt", attempt, "error", err)
			continue
		}

		switch status.Status {
		case models.RemoteOrderCompleted:
			complete(checkout.EventPollCompleted, status.PayPalCaptureID)
			return
		case models.RemoteOrderFailed:
			apply(checkout.Event{Type: checkout.EventPollFailed})
			return
		}
		logger.Info("Order still processing", "order_number", state.OrderNumber, "attempt", attempt)
	}

	apply(checkout.Event{Type: checkout.EventPollExhausted})
}

// finishOrder runs the completion side effects. Neither may undo a captured payment, so
// failures are logged and swallowed.
func finishOrder(ctx workflow.Context, act *activities.CheckoutActivities, payload models.OrderPayload) bool {
	logger := workflow.GetLogger(ctx)

	enqueueCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	var queued bool
	if err := workflow.ExecuteActivity(enqueueCtx, act.EnqueueOrderEmail, payload).Get(ctx, &queued); err != nil {
		logger.Error("Failed to enqueue order email", "order_number", payload.OrderNumber, "error", err)
	}

	finalizeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
	if err := workflow.ExecuteActivity(finalizeCtx, act.FinalizeCheckout, payload).Get(ctx, nil); err != nil {
		logger.Warn("Failed to finalize checkout", "order_number", payload.OrderNumber, "error", err)
	}

	return queued
}

func resultOf(s checkout.Session, emailQueued, expired bool) CheckoutResult {
	return CheckoutResult{
		OrderNumber:     s.OrderNumber,
		Status:          s.Status,
		PayPalCaptureID: s.PayPalCaptureID,
		Error:           s.Error,
		EmailQueued:     emailQueued,
		Expired:         expired,
	}
}
