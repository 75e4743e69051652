package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSender stops calling the wrapped sender after repeated failures and lets one probe
// through once the cool-down has passed.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
	// OnStateChange is told about every state change.
	OnStateChange func(from, to string)
}

// NewBreakerSender wraps next in a circuit breaker.
func NewBreakerSender(next Sender, settings BreakerSettings) *BreakerSender {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = time.Minute
	}

	st := gobreaker.Settings{
		Name:        "email",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
	}
	if settings.OnStateChange != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			settings.OnStateChange(from.String(), to.String())
		}
	}

	return &BreakerSender{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}
