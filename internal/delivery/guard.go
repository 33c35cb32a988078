package delivery

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/metrics"
)

// GuardedChannel rate limits a channel and trips a circuit breaker when its
// provider keeps failing, so a dead gateway fails fast for the rest of a run.
type GuardedChannel struct {
	Channel
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
}

func Guard(ch Channel, cfg config.GuardConfig) *GuardedChannel {
	name := string(ch.Name())
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A bad address or a cancelled run says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrMissingDestination) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("channel", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &GuardedChannel{
		Channel: ch,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
	}
}

func (g *GuardedChannel) Deliver(ctx context.Context, destination string, msg Message) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.cb.Execute(func() (struct{}, error) {
		return struct{}{}, g.Channel.Deliver(ctx, destination, msg)
	})
	return err
}

// State reports the breaker state; /healthz lists it per channel.
func (g *GuardedChannel) State() gobreaker.State {
	return g.cb.State()
}
