package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// MockAdapter implements Adapter for testing.
type MockAdapter struct {
	mock.Mock

	// BrokerName overrides the reported backend name when set.
	BrokerName string
}

func (m *MockAdapter) Name() string {
	if m.BrokerName != "" {
		return m.BrokerName
	}
	return "mock"
}

func (m *MockAdapter) GetInstrumentInfo(ctx context.Context, instrument models.Instrument) (*InstrumentInfo, error) {
	args := m.Called(ctx, instrument)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InstrumentInfo), args.Error(1)
}

func (m *MockAdapter) GetPosition(ctx context.Context, info *InstrumentInfo) (*Position, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Position), args.Error(1)
}

func (m *MockAdapter) GetPositionWaitingForSettlement(ctx context.Context, info *InstrumentInfo,
	expectedQty int64, maxAttempts int, delay time.Duration) (*Position, error) {
	args := m.Called(ctx, info, expectedQty, maxAttempts, delay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Position), args.Error(1)
}

func (m *MockAdapter) GetMoneyBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAdapter) GetLastPrice(ctx context.Context, info *InstrumentInfo) (decimal.Decimal, error) {
	args := m.Called(ctx, info)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAdapter) CalculatePositionSize(ctx context.Context, info *InstrumentInfo,
	leveragePercent, reserveCapital decimal.Decimal, direction models.PositionState) (int64, error) {
	args := m.Called(ctx, info, leveragePercent, reserveCapital, direction)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdapter) PlaceMarketOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64) (string, error) {
	args := m.Called(ctx, info, direction, qty)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) PlaceStopLossOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64, stopPrice decimal.Decimal) (string, error) {
	args := m.Called(ctx, info, direction, qty, stopPrice)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) PlaceTakeProfitOrder(ctx context.Context, info *InstrumentInfo,
	direction Direction, qty int64, targetPrice decimal.Decimal) (string, error) {
	args := m.Called(ctx, info, direction, qty, targetPrice)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) CancelStopOrders(ctx context.Context, orders []StopOrder) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}

func (m *MockAdapter) GetCurrentStopOrders(ctx context.Context, info *InstrumentInfo) ([]StopOrder, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StopOrder), args.Error(1)
}

func (m *MockAdapter) PullEnsureOrdersResult(ctx context.Context, info *InstrumentInfo,
	orders []EnsureOrder) ([]EnsureOrder, error) {
	args := m.Called(ctx, info, orders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EnsureOrder), args.Error(1)
}

// Ensure MockAdapter implements Adapter at compile time.
var _ Adapter = (*MockAdapter)(nil)
