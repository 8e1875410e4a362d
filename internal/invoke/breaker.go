package invoke

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/util"
)

// BreakerStateFunc is called when the circuit breaker changes state.
// Parameters: name (breaker name), state (0=closed, 1=half-open, 2=open).
type BreakerStateFunc func(name string, state int)

// BreakerOptions configures the circuit breaker wrapper.
type BreakerOptions struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// Threshold is how many requests the counting window needs
	// before the failure ratio can trip the breaker.
	Threshold int
	// Timeout is both the counting interval and how long the
	// breaker stays open before probing.
	Timeout time.Duration
	// MaxRequests is how many probe requests a half-open breaker
	// lets through.
	MaxRequests int
}

// BreakerInvoker wraps an Invoker with circuit breaker protection.
// Runtime failures and 5xx results count as failures; an open
// circuit fails invocations fast without reaching the runtime.
type BreakerInvoker struct {
	inner         Invoker
	cb            *gobreaker.CircuitBreaker
	logger        observability.Logger
	stateCallback BreakerStateFunc
}

// BreakerOption is a functional option for the breaker invoker.
type BreakerOption func(*BreakerInvoker)

// WithBreakerLogger sets the logger for the breaker invoker.
func WithBreakerLogger(logger observability.Logger) BreakerOption {
	return func(b *BreakerInvoker) {
		b.logger = logger
	}
}

// WithBreakerStateCallback sets a callback for state changes.
func WithBreakerStateCallback(fn BreakerStateFunc) BreakerOption {
	return func(b *BreakerInvoker) {
		b.stateCallback = fn
	}
}

// NewBreakerInvoker wraps an invoker with a circuit breaker.
func NewBreakerInvoker(inner Invoker, opts BreakerOptions, bopts ...BreakerOption) *BreakerInvoker {
	b := &BreakerInvoker{
		inner:  inner,
		logger: observability.NopLogger(),
	}

	for _, opt := range bopts {
		opt(b)
	}

	name := opts.Name
	if name == "" {
		name = "invoker"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	threshold := safeIntToUint32(opts.Threshold)
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := safeIntToUint32(opts.MaxRequests)
	if maxRequests == 0 {
		maxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if b.stateCallback != nil {
				b.stateCallback(name, int(to))
			}
		},
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n)
}

// State returns the current state of the circuit breaker.
func (b *BreakerInvoker) State() gobreaker.State {
	return b.cb.State()
}

// Invoke executes the invocation through the circuit breaker.
func (b *BreakerInvoker) Invoke(ctx context.Context, backendID string, payload *Payload) (*Result, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		result, err := b.inner.Invoke(ctx, backendID, payload)
		if err != nil {
			return nil, err
		}

		// A 5xx envelope is a valid response to relay outward, but
		// it still counts against the breaker.
		if result.Status >= 500 {
			return result, util.NewServerError(result.Status)
		}
		return result, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Warn("circuit breaker rejected invocation",
				observability.String("backend_id", backendID),
				observability.String("state", b.cb.State().String()),
			)
			return nil, util.NewInvocationErrorWithCause(backendID, "circuit breaker open", err)
		}

		var srvErr *util.ServerError
		if errors.As(err, &srvErr) {
			return v.(*Result), nil
		}
		return nil, err
	}

	return v.(*Result), nil
}

// Ensure BreakerInvoker implements Invoker.
var _ Invoker = (*BreakerInvoker)(nil)
