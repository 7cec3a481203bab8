// Package broker defines the adapter surface the dispatcher drives a
// brokerage through, the shared order and position types, and the
// broker-neutral error taxonomy. Concrete backends live in subpackages.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// Settlement polling defaults used by GetPositionWaitingForSettlement.
const (
	DefaultSettlementAttempts = 20
	DefaultSettlementDelay    = 250 * time.Millisecond
)

// Adapter is the interface for interacting with a brokerage. Methods block
// until the broker answers; failures are *TradingError. Absent values
// (unknown instrument, flat position) come back as nil with a nil error.
type Adapter interface {
	// Name identifies the backend, matching the config broker name.
	Name() string

	// Market data and account state
	GetInstrumentInfo(ctx context.Context, instrument models.Instrument) (*InstrumentInfo, error)
	GetPosition(ctx context.Context, info *InstrumentInfo) (*Position, error)
	GetPositionWaitingForSettlement(ctx context.Context, info *InstrumentInfo,
		expectedQty int64, maxAttempts int, delay time.Duration) (*Position, error)
	GetMoneyBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	GetLastPrice(ctx context.Context, info *InstrumentInfo) (decimal.Decimal, error)

	// CalculatePositionSize returns the lot count for a new position in the
	// desired direction, honouring the leverage cap and the margin safety
	// net. Zero means "do not open".
	CalculatePositionSize(ctx context.Context, info *InstrumentInfo,
		leveragePercent, reserveCapital decimal.Decimal, direction models.PositionState) (int64, error)

	// Order placement and management
	PlaceMarketOrder(ctx context.Context, info *InstrumentInfo, direction Direction, qty int64) (string, error)
	PlaceStopLossOrder(ctx context.Context, info *InstrumentInfo, direction Direction,
		qty int64, stopPrice decimal.Decimal) (string, error)
	PlaceTakeProfitOrder(ctx context.Context, info *InstrumentInfo, direction Direction,
		qty int64, targetPrice decimal.Decimal) (string, error)
	CancelStopOrders(ctx context.Context, orders []StopOrder) error
	GetCurrentStopOrders(ctx context.Context, info *InstrumentInfo) ([]StopOrder, error)

	// PullEnsureOrdersResult hydrates Fill on every trade leg in orders by
	// consulting the broker's trade or order-state view. Stop legs pass
	// through untouched. Fails with CodeOrderTradeNotFound when an expected
	// fill cannot be located.
	PullEnsureOrdersResult(ctx context.Context, info *InstrumentInfo, orders []EnsureOrder) ([]EnsureOrder, error)
}

// Settled reports whether a polled position matches the expected quantity
// with a usable average price. An absent position settles only an expected
// quantity of zero.
func Settled(pos *Position, expectedQty int64) bool {
	if pos == nil {
		return expectedQty == 0
	}
	return pos.Quantity == expectedQty && (!pos.AveragePrice.IsZero() || expectedQty == 0)
}

// WaitForSettlement polls get until Settled holds, then returns the
// position. Adapters implement GetPositionWaitingForSettlement with it.
// Non-positive maxAttempts or delay fall back to the defaults. Exhausting
// the attempts fails with CodePositionSettlementTimeout.
func WaitForSettlement(ctx context.Context, get func(context.Context) (*Position, error),
	expectedQty int64, maxAttempts int, delay time.Duration) (*Position, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSettlementAttempts
	}
	if delay <= 0 {
		delay = DefaultSettlementDelay
	}

	var last *Position
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, NewTradingError(CodePositionSettlementTimeout, "settlement wait interrupted", ctx.Err())
			case <-timer.C:
			}
		}

		pos, err := get(ctx)
		if err != nil {
			return nil, err
		}
		if Settled(pos, expectedQty) {
			return pos, nil
		}
		last = pos
	}

	lastQty := int64(0)
	if last != nil {
		lastQty = last.Quantity
	}
	return nil, Errorf(CodePositionSettlementTimeout,
		"position did not settle at %d lots after %d attempts (last seen %d)", expectedQty, maxAttempts, lastQty)
}
