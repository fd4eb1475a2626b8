package notify

import (
	"context"
	"errors"
	"time"

	"spendwise-server/src/logging"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Observer receives delivery outcomes and breaker state changes.
type Observer interface {
	NotificationSent(ok bool)
	// SetCircuitState receives 0 for closed, 1 for open and 2 for half-open.
	SetCircuitState(name string, state int)
}

type noopObserver struct{}

func (noopObserver) NotificationSent(bool)       {}
func (noopObserver) SetCircuitState(string, int) {}

type BreakerConfig struct {
	// Timeout bounds each delivery (default: 5s)
	Timeout time.Duration
	// MaxFailures is the run of consecutive failures that opens the circuit
	// (default: 5)
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial request
	// (default: 30s)
	OpenTimeout time.Duration
}

// BreakerNotifier guards another Notifier with a circuit breaker and a
// per-call timeout.
type BreakerNotifier struct {
	next     Notifier
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	observer Observer
	logger   *logging.Logger
}

func NewBreakerNotifier(name string, next Notifier, config BreakerConfig, observer Observer) *BreakerNotifier {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if observer == nil {
		observer = noopObserver{}
	}

	b := &BreakerNotifier{
		next:     next,
		timeout:  config.Timeout,
		observer: observer,
		logger:   logging.L().Named("notify").Named(name),
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				zap.String("notifier", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			b.observer.SetCircuitState(name, circuitState(to))
		},
	})
	return b
}

func circuitState(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	}
	return 0
}

func (b *BreakerNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, chatID, text)
	})
	b.observer.NotificationSent(err == nil)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return err
}

// State reports the breaker state, mostly for tests and health output.
func (b *BreakerNotifier) State() gobreaker.State {
	return b.cb.State()
}
