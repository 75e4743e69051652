package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"fpg-order-system/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// CaptureTimeout is the hard deadline on a single capture call.
	CaptureTimeout = 30 * time.Second
	// PollInterval is the fixed wait between order-status polls.
	PollInterval = 3 * time.Second
	// MaxPollAttempts bounds reconciliation of an ambiguous capture.
	MaxPollAttempts = 10

	// CartTTL is how long an untouched cart, and the session driving it, survives.
	CartTTL = time.Hour
	// CompletingMarkerTTL bounds the "order completing" marker.
	CompletingMarkerTTL = 5 * time.Minute
	// ViewingMarkerTTL bounds the "viewing confirmation" marker.
	ViewingMarkerTTL = 30 * time.Minute
	// SummaryTTL is how long the confirmation page can read the order summary.
	SummaryTTL = 24 * time.Hour

	Currency = "AUD"
)

// Session is the state of one checkout.
type Session struct {
	OrderNumber     string              `json:"orderNumber"`
	Step            Step                `json:"step"`
	Status          Status              `json:"status"`
	ShippingDetails *models.UserDetails `json:"shippingDetails,omitempty"`
	Cart            Cart                `json:"cart"`
	Totals          models.Totals       `json:"totals"`
	IsDeveloperMode bool                `json:"isDeveloperMode"`
	PayPalOrderID   string              `json:"paypalOrderID,omitempty"`
	PayerID         string              `json:"payerID,omitempty"`
	PayPalCaptureID string              `json:"paypalCaptureID,omitempty"`
	PollAttempts    int                 `json:"pollAttempts"`
	Retryable       bool                `json:"retryable"`
	Notice          string              `json:"notice,omitempty"`
	Error           string              `json:"error,omitempty"`
	RedirectTo      string              `json:"redirectTo,omitempty"`
}

// NewSession starts a session for the cart. Totals are computed once over the undivided cart.
func NewSession(orderNumber string, items []models.LineItem, shipping decimal.Decimal, developerMode bool) Session {
	return Session{
		OrderNumber:     orderNumber,
		Step:            StepShipping,
		Status:          StatusIdle,
		Cart:            Partition(items),
		Totals:          ComputeTotals(items, shipping),
		IsDeveloperMode: developerMode,
	}
}

// Absorbing reports whether no further event can change the session's outcome.
func (s Session) Absorbing() bool {
	return s.Status == StatusCompleted || (s.Status == StatusFailed && !s.Retryable)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateShipping checks the shipping form. The returned error wraps ErrInvalidShipping and
// names each offending field.
func ValidateShipping(d models.UserDetails) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidShipping, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidShipping, strings.Join(problems, ", "))
}
