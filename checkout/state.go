package checkout

import (
	"errors"
	"fmt"
	"strings"

	"fpg-order-system/models"
)

// Status is the payment status of a checkout session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusTimeout    Status = "timeout"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InFlight reports whether a capture or its reconciliation is under way. Cart-emptiness
// redirects must be suppressed while this holds.
func (s Status) InFlight() bool {
	return s == StatusProcessing || s == StatusTimeout
}

// Step is the form step the customer is on
type Step string

const (
	StepShipping Step = "shipping"
	StepPayment  Step = "payment"
)

// EventType names a checkout event
type EventType string

const (
	EventSubmitShipping   EventType = "submit_shipping"
	EventEditShipping     EventType = "edit_shipping"
	EventApprove          EventType = "approve"
	EventCaptureSucceeded EventType = "capture_succeeded"
	EventCaptureRejected  EventType = "capture_rejected"
	EventCaptureAmbiguous EventType = "capture_ambiguous"
	EventPollCompleted    EventType = "poll_completed"
	EventPollFailed       EventType = "poll_failed"
	EventPollExhausted    EventType = "poll_exhausted"
	EventCancel           EventType = "cancel"
	EventWidgetError      EventType = "widget_error"
	EventRetry            EventType = "retry"
)

// Event drives a transition. Only the fields relevant to Type are read.
type Event struct {
	Type            EventType           `json:"type"`
	Shipping        *models.UserDetails `json:"shipping,omitempty"`
	PayPalOrderID   string              `json:"paypalOrderID,omitempty"`
	PayerID         string              `json:"payerID,omitempty"`
	PayPalCaptureID string              `json:"paypalCaptureID,omitempty"`
	Message         string              `json:"message,omitempty"`
}

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrInvalidShipping   = errors.New("invalid shipping details")
)

const (
	NoticeCancelled    = "Payment was cancelled. Your cart is still saved."
	NoticeConfirming   = "We are confirming your payment. This can take up to 30 seconds."
	defaultRejectError = "Your payment could not be completed"
	widgetErrorText    = "PayPal could not be loaded"
)

// SupportMessage is the error shown when a payment outcome cannot be confirmed.
func SupportMessage(orderNumber string) string {
	return "We could not confirm your payment. Please contact support with order number: " + orderNumber
}

func withOrderNumber(msg, orderNumber string) string {
	msg = strings.TrimRight(strings.TrimSpace(msg), ".")
	return fmt.Sprintf("%s. Please try again or contact support with order number: %s", msg, orderNumber)
}

// ConfirmationPath is where a completed session sends the customer.
func ConfirmationPath(orderNumber string) string {
	return "/order-confirmation?order=" + orderNumber
}

// Transition applies ev to s and returns the resulting session. Every status change of a
// session goes through here. A rejected event returns s unchanged together with
// ErrInvalidTransition, or ErrInvalidShipping for details that fail validation.
func Transition(s Session, ev Event) (Session, error) {
	next := s

	switch {
	case ev.Type == EventSubmitShipping && s.Status == StatusIdle:
		if ev.Shipping == nil {
			return s, fmt.Errorf("%w: missing details", ErrInvalidShipping)
		}
		if err := ValidateShipping(*ev.Shipping); err != nil {
			return s, err
		}
		details := *ev.Shipping
		next.ShippingDetails = &details
		next.Step = StepPayment
		next.Error = ""
		next.Notice = ""

	case ev.Type == EventEditShipping && s.Status == StatusIdle:
		next.Step = StepShipping
		next.Notice = ""

	case ev.Type == EventApprove && s.Status == StatusIdle:
		if s.Step != StepPayment || s.ShippingDetails == nil {
			return s, fmt.Errorf("%w: payment step requires shipping details", ErrInvalidTransition)
		}
		next.Status = StatusProcessing
		next.PayPalOrderID = ev.PayPalOrderID
		next.PayerID = ev.PayerID
		next.Error = ""
		next.Notice = ""

	case ev.Type == EventCaptureSucceeded && s.Status == StatusProcessing,
		ev.Type == EventPollCompleted && s.Status == StatusTimeout:
		next.Status = StatusCompleted
		if ev.PayPalCaptureID != "" {
			next.PayPalCaptureID = ev.PayPalCaptureID
		}
		next.Retryable = false
		next.Error = ""
		next.Notice = ""
		next.RedirectTo = ConfirmationPath(s.OrderNumber)
		next.Cart = Cart{}

	case ev.Type == EventCaptureRejected && s.Status == StatusProcessing:
		msg := ev.Message
		if msg == "" {
			msg = defaultRejectError
		}
		next.Status = StatusFailed
		next.Retryable = true
		next.Error = withOrderNumber(msg, s.OrderNumber)

	case ev.Type == EventCaptureAmbiguous && s.Status == StatusProcessing:
		next.Status = StatusTimeout
		next.PollAttempts = 0
		next.Notice = NoticeConfirming

	case (ev.Type == EventPollFailed || ev.Type == EventPollExhausted) && s.Status == StatusTimeout:
		next.Status = StatusFailed
		next.Retryable = false
		next.Notice = ""
		next.Error = SupportMessage(s.OrderNumber)

	case ev.Type == EventCancel && s.Status == StatusIdle:
		next.Notice = NoticeCancelled
		next.Error = ""

	case ev.Type == EventWidgetError && s.Status == StatusIdle:
		next.Status = StatusFailed
		next.Retryable = true
		next.Notice = ""
		next.Error = withOrderNumber(widgetErrorText, s.OrderNumber)

	case ev.Type == EventRetry && s.Status == StatusFailed && s.Retryable:
		next.Status = StatusIdle
		next.Retryable = false
		next.Error = ""
		next.PayPalOrderID = ""
		next.PayerID = ""

	default:
		return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Type, s.Status)
	}

	return next, nil
}
