package shopify

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
)

// BreakerSettings tunes the Admin API circuit breaker.
type BreakerSettings struct {
	Name        string
	MinRequests uint32
	FailureRate float64
	Interval    time.Duration
	OpenTimeout time.Duration
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls in a
// one minute window and probes again after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "shopify-admin-api",
		MinRequests: 10,
		FailureRate: 0.6,
		Interval:    time.Minute,
		OpenTimeout: 30 * time.Second,
	}
}

// NewBreaker builds the breaker passed to WithBreaker. Caller cancellation is
// not treated as an upstream failure.
func NewBreaker(settings BreakerSettings, logg *logger.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRate
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "shopify.breaker_state_changed")
		},
	})
}
