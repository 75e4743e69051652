package checkout

import (
	"errors"
	"testing"

	"fpg-order-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDetails() models.UserDetails {
	return models.UserDetails{
		FirstName:    "Sam",
		LastName:     "Taylor",
		Email:        "sam@example.com.au",
		Phone:        "0412345678",
		AddressLine1: "12 Pump St",
		City:         "Toowoomba",
		State:        "QLD",
		Postcode:     "4350",
		Country:      "Australia",
	}
}

func testCart() []models.LineItem {
	return []models.LineItem{
		{ID: "P1", Name: "Hydraulic hose 1m", Quantity: 2, Price: decimal.RequireFromString("30.00"), Type: models.ItemTypeProduct},
		{ID: "P2", Name: "Ferrule", Quantity: 4, Price: decimal.RequireFromString("2.50")},
		{ID: "A1", Name: "Custom assembly", Quantity: 1, Price: decimal.RequireFromString("20.00"), Type: models.ItemTypePWA,
			PDF: &models.PDFAttachment{Filename: "assembly.pdf", Data: "JVBERi0x"}},
		{ID: "T1", Name: "Tractor kit", Quantity: 1, Price: decimal.RequireFromString("10.00"), Type: models.ItemTypeTrac360},
	}
}

func sessionAt(t *testing.T, status Status) Session {
	t.Helper()
	s := NewSession("FPG-TEST0001", testCart(), decimal.Zero, false)

	var err error
	details := validDetails()
	s, err = Transition(s, Event{Type: EventSubmitShipping, Shipping: &details})
	require.NoError(t, err)
	if status == StatusIdle {
		return s
	}

	s, err = Transition(s, Event{Type: EventApprove, PayPalOrderID: "PP-1", PayerID: "PAYER-1"})
	require.NoError(t, err)
	switch status {
	case StatusProcessing:
	case StatusTimeout:
		s, err = Transition(s, Event{Type: EventCaptureAmbiguous})
		require.NoError(t, err)
	case StatusCompleted:
		s, err = Transition(s, Event{Type: EventCaptureSucceeded, PayPalCaptureID: "CAP-1"})
		require.NoError(t, err)
	case StatusFailed:
		s, err = Transition(s, Event{Type: EventCaptureRejected, Message: "Card declined"})
		require.NoError(t, err)
	}
	return s
}

func TestTransitionHappyPath(t *testing.T) {
	s := NewSession("FPG-TEST0001", testCart(), decimal.Zero, false)
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, StepShipping, s.Step)

	details := validDetails()
	s, err := Transition(s, Event{Type: EventSubmitShipping, Shipping: &details})
	require.NoError(t, err)
	assert.Equal(t, StepPayment, s.Step)
	require.NotNil(t, s.ShippingDetails)

	s, err = Transition(s, Event{Type: EventApprove, PayPalOrderID: "PP-1", PayerID: "PAYER-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, s.Status)
	assert.True(t, s.Status.InFlight())

	s, err = Transition(s, Event{Type: EventCaptureSucceeded, PayPalCaptureID: "CAP-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, "CAP-1", s.PayPalCaptureID)
	assert.Equal(t, "/order-confirmation?order=FPG-TEST0001", s.RedirectTo)
	assert.True(t, s.Cart.Empty())
	assert.True(t, s.Absorbing())
}

func TestApproveRequiresShippingDetails(t *testing.T) {
	s := NewSession("FPG-TEST0002", testCart(), decimal.Zero, false)

	next, err := Transition(s, Event{Type: EventApprove, PayPalOrderID: "PP-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, s, next)

	// forcing the step without details must still be rejected
	s.Step = StepPayment
	_, err = Transition(s, Event{Type: EventApprove, PayPalOrderID: "PP-1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitShippingValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *models.UserDetails)
		wantField string
	}{
		{name: "missing email", mutate: func(d *models.UserDetails) { d.Email = "" }, wantField: "email"},
		{name: "bad email", mutate: func(d *models.UserDetails) { d.Email = "not-an-email" }, wantField: "email"},
		{name: "short postcode", mutate: func(d *models.UserDetails) { d.Postcode = "435" }, wantField: "postcode"},
		{name: "alpha postcode", mutate: func(d *models.UserDetails) { d.Postcode = "43AB" }, wantField: "postcode"},
		{name: "missing city", mutate: func(d *models.UserDetails) { d.City = "" }, wantField: "city"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("FPG-TEST0003", testCart(), decimal.Zero, false)
			details := validDetails()
			tt.mutate(&details)

			next, err := Transition(s, Event{Type: EventSubmitShipping, Shipping: &details})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidShipping)
			assert.Contains(t, err.Error(), tt.wantField)
			assert.Equal(t, StepShipping, next.Step)
			assert.Nil(t, next.ShippingDetails)
		})
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name          string
		from          Status
		event         Event
		wantStatus    Status
		wantErr       bool
		wantRetryable bool
		errContains   string
	}{
		{name: "capture rejected", from: StatusProcessing, event: Event{Type: EventCaptureRejected, Message: "Card declined"},
			wantStatus: StatusFailed, wantRetryable: true, errContains: "Card declined"},
		{name: "capture ambiguous", from: StatusProcessing, event: Event{Type: EventCaptureAmbiguous}, wantStatus: StatusTimeout},
		{name: "poll completed", from: StatusTimeout, event: Event{Type: EventPollCompleted}, wantStatus: StatusCompleted},
		{name: "poll failed", from: StatusTimeout, event: Event{Type: EventPollFailed},
			wantStatus: StatusFailed, errContains: "FPG-TEST0001"},
		{name: "poll exhausted", from: StatusTimeout, event: Event{Type: EventPollExhausted},
			wantStatus: StatusFailed, errContains: "We could not confirm your payment"},
		{name: "cancel keeps idle", from: StatusIdle, event: Event{Type: EventCancel}, wantStatus: StatusIdle},
		{name: "widget error", from: StatusIdle, event: Event{Type: EventWidgetError},
			wantStatus: StatusFailed, wantRetryable: true, errContains: "FPG-TEST0001"},
		{name: "retry after rejection", from: StatusFailed, event: Event{Type: EventRetry}, wantStatus: StatusIdle},

		{name: "approve twice", from: StatusProcessing, event: Event{Type: EventApprove}, wantErr: true},
		{name: "cancel during capture", from: StatusProcessing, event: Event{Type: EventCancel}, wantErr: true},
		{name: "retry during polling", from: StatusTimeout, event: Event{Type: EventRetry}, wantErr: true},
		{name: "poll result while processing", from: StatusProcessing, event: Event{Type: EventPollCompleted}, wantErr: true},
		{name: "capture result while idle", from: StatusIdle, event: Event{Type: EventCaptureSucceeded}, wantErr: true},
		{name: "retry when idle", from: StatusIdle, event: Event{Type: EventRetry}, wantErr: true},
		{name: "edit shipping after completion", from: StatusCompleted, event: Event{Type: EventEditShipping}, wantErr: true},
		{name: "approve after completion", from: StatusCompleted, event: Event{Type: EventApprove}, wantErr: true},
		{name: "unknown event", from: StatusIdle, event: Event{Type: "bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionAt(t, tt.from)
			next, err := Transition(s, tt.event)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, s, next)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, next.Status)
			assert.Equal(t, tt.wantRetryable, next.Retryable)
			if tt.errContains != "" {
				assert.Contains(t, next.Error, tt.errContains)
			}
		})
	}
}

func TestRetryNotAllowedAfterUnresolvedPayment(t *testing.T) {
	s := sessionAt(t, StatusTimeout)
	s, err := Transition(s, Event{Type: EventPollExhausted})
	require.NoError(t, err)
	assert.True(t, s.Absorbing())

	_, err = Transition(s, Event{Type: EventRetry})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryResetsToIdleAndKeepsShipping(t *testing.T) {
	s := sessionAt(t, StatusFailed)
	require.True(t, s.Retryable)

	s, err := Transition(s, Event{Type: EventRetry})
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, StepPayment, s.Step)
	assert.NotNil(t, s.ShippingDetails)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.PayPalOrderID)

	s, err = Transition(s, Event{Type: EventApprove, PayPalOrderID: "PP-2"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, s.Status)
}

func TestCancelSetsNotice(t *testing.T) {
	s := sessionAt(t, StatusIdle)
	s, err := Transition(s, Event{Type: EventCancel})
	require.NoError(t, err)
	assert.Equal(t, NoticeCancelled, s.Notice)
	assert.Empty(t, s.Error)
	assert.False(t, s.Cart.Empty())
}

func TestInFlight(t *testing.T) {
	assert.False(t, StatusIdle.InFlight())
	assert.True(t, StatusProcessing.InFlight())
	assert.True(t, StatusTimeout.InFlight())
	assert.False(t, StatusCompleted.InFlight())
	assert.False(t, StatusFailed.InFlight())
}
