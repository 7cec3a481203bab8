package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// CircuitBreakerAdapter wraps an Adapter with circuit breaker functionality
// so a misbehaving broker backend sheds load instead of queueing timeouts.
type CircuitBreakerAdapter struct {
	adapter Adapter
	breaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerAdapter wraps adapter with sensible defaults.
func NewCircuitBreakerAdapter(adapter Adapter, log *logrus.Logger) *CircuitBreakerAdapter {
	return NewCircuitBreakerAdapterWithSettings(adapter, log, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerAdapterWithSettings wraps adapter with custom settings.
func NewCircuitBreakerAdapterWithSettings(adapter Adapter, log *logrus.Logger,
	settings CircuitBreakerSettings) *CircuitBreakerAdapter {
	gbSettings := gobreaker.Settings{
		Name:        adapter.Name() + "-broker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerAdapter{
		adapter: adapter,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	adapter Adapter,
	fn func(Adapter) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(adapter) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// Name returns the wrapped adapter's name.
func (c *CircuitBreakerAdapter) Name() string {
	return c.adapter.Name()
}

func (c *CircuitBreakerAdapter) GetInstrumentInfo(ctx context.Context, instrument models.Instrument) (*InstrumentInfo, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (*InstrumentInfo, error) {
		return a.GetInstrumentInfo(ctx, instrument)
	})
}

func (c *CircuitBreakerAdapter) GetPosition(ctx context.Context, info *InstrumentInfo) (*Position, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (*Position, error) {
		return a.GetPosition(ctx, info)
	})
}

// GetPositionWaitingForSettlement polls through the wrapped adapter directly.
// A settlement wait spans many polls, so it must not count as one long
// breaker request; each inner GetPosition is guarded instead.
func (c *CircuitBreakerAdapter) GetPositionWaitingForSettlement(ctx context.Context, info *InstrumentInfo,
	expectedQty int64, maxAttempts int, delay time.Duration) (*Position, error) {
	return WaitForSettlement(ctx, func(ctx context.Context) (*Position, error) {
		return c.GetPosition(ctx, info)
	}, expectedQty, maxAttempts, delay)
}

func (c *CircuitBreakerAdapter) GetMoneyBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (decimal.Decimal, error) {
		return a.GetMoneyBalance(ctx, currency)
	})
}

func (c *CircuitBreakerAdapter) GetLastPrice(ctx context.Context, info *InstrumentInfo) (decimal.Decimal, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (decimal.Decimal, error) {
		return a.GetLastPrice(ctx, info)
	})
}

func (c *CircuitBreakerAdapter) CalculatePositionSize(ctx context.Context, info *InstrumentInfo,
	leveragePercent, reserveCapital decimal.Decimal, direction models.PositionState) (int64, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (int64, error) {
		return a.CalculatePositionSize(ctx, info, leveragePercent, reserveCapital, direction)
	})
}

func (c *CircuitBreakerAdapter) PlaceMarketOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64) (string, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (string, error) {
		return a.PlaceMarketOrder(ctx, info, direction, qty)
	})
}

func (c *CircuitBreakerAdapter) PlaceStopLossOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64, stopPrice decimal.Decimal) (string, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (string, error) {
		return a.PlaceStopLossOrder(ctx, info, direction, qty, stopPrice)
	})
}

func (c *CircuitBreakerAdapter) PlaceTakeProfitOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64, targetPrice decimal.Decimal) (string, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) (string, error) {
		return a.PlaceTakeProfitOrder(ctx, info, direction, qty, targetPrice)
	})
}

func (c *CircuitBreakerAdapter) CancelStopOrders(ctx context.Context, orders []StopOrder) error {
	_, err := execBreaker(c.breaker, c.adapter, func(a Adapter) (struct{}, error) {
		return struct{}{}, a.CancelStopOrders(ctx, orders)
	})
	return err
}

func (c *CircuitBreakerAdapter) GetCurrentStopOrders(ctx context.Context, info *InstrumentInfo) ([]StopOrder, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) ([]StopOrder, error) {
		return a.GetCurrentStopOrders(ctx, info)
	})
}

func (c *CircuitBreakerAdapter) PullEnsureOrdersResult(ctx context.Context, info *InstrumentInfo,
	orders []EnsureOrder) ([]EnsureOrder, error) {
	return execBreaker(c.breaker, c.adapter, func(a Adapter) ([]EnsureOrder, error) {
		return a.PullEnsureOrdersResult(ctx, info, orders)
	})
}

// Ensure CircuitBreakerAdapter implements Adapter at compile time.
var _ Adapter = (*CircuitBreakerAdapter)(nil)
