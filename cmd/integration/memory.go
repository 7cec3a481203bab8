package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// memoryBroker is a self-contained adapter for end-to-end runs without
// broker credentials. Market orders fill instantly at the configured
// price. Stop orders are held but never trigger.
type memoryBroker struct {
	mu        sync.Mutex
	lastPrice decimal.Decimal
	cash      decimal.Decimal
	position  *broker.Position
	stops     map[string]map[string]broker.StopOrder
	fills     map[string]broker.Fill
	seq       int
}

func newMemoryBroker(lastPrice, cash decimal.Decimal) *memoryBroker {
	return &memoryBroker{
		lastPrice: lastPrice,
		cash:      cash,
		stops:     make(map[string]map[string]broker.StopOrder),
		fills:     make(map[string]broker.Fill),
	}
}

var _ broker.Adapter = (*memoryBroker)(nil)

func (m *memoryBroker) Name() string {
	return "memory"
}

func (m *memoryBroker) GetInstrumentInfo(_ context.Context, instrument models.Instrument) (*broker.InstrumentInfo, error) {
	return &broker.InstrumentInfo{
		Instrument:   instrument,
		Name:         "Memory " + instrument.Ticker,
		Type:         broker.InstrumentShare,
		Currency:     "RUB",
		LotSize:      decimal.NewFromInt(10),
		MinPriceStep: decimal.New(1, -2),
	}, nil
}

func (m *memoryBroker) GetPosition(_ context.Context, info *broker.InstrumentInfo) (*broker.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position == nil || m.position.Instrument.String() != info.Instrument.String() {
		return nil, nil
	}
	position := *m.position
	return &position, nil
}

func (m *memoryBroker) GetPositionWaitingForSettlement(ctx context.Context, info *broker.InstrumentInfo,
	expectedQty int64, maxAttempts int, delay time.Duration) (*broker.Position, error) {
	return broker.WaitForSettlement(ctx, func(ctx context.Context) (*broker.Position, error) {
		return m.GetPosition(ctx, info)
	}, expectedQty, maxAttempts, delay)
}

func (m *memoryBroker) GetMoneyBalance(context.Context, string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash, nil
}

func (m *memoryBroker) GetLastPrice(context.Context, *broker.InstrumentInfo) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrice, nil
}

func (m *memoryBroker) CalculatePositionSize(ctx context.Context, info *broker.InstrumentInfo,
	leveragePercent, reserveCapital decimal.Decimal, direction models.PositionState) (int64, error) {
	if direction != models.PositionLong && direction != models.PositionShort {
		return 0, broker.Errorf(broker.CodeInvalidPositionDirection,
			"invalid position direction %q", direction)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	perLotCost := m.lastPrice.Mul(info.LotSize)
	if !perLotCost.IsPositive() {
		return 0, broker.Errorf(broker.CodeNoPriceData, "no last price for %s", info.Instrument)
	}
	leverageCap := m.cash.Add(reserveCapital).Mul(leveragePercent).Div(decimal.NewFromInt(100))

	byBalance := m.cash.Div(perLotCost).Floor().IntPart()
	byLeverage := leverageCap.Div(perLotCost).Floor().IntPart()
	qty := min(byBalance, byLeverage)
	if qty < 0 {
		qty = 0
	}
	return qty, nil
}

func (m *memoryBroker) PlaceMarketOrder(_ context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	signed := qty
	if direction == broker.Sell {
		signed = -qty
	}

	var oldQty int64
	var oldAvg decimal.Decimal
	if m.position != nil {
		oldQty, oldAvg = m.position.Quantity, m.position.AveragePrice
	}

	newQty := oldQty + signed
	switch {
	case newQty == 0:
		m.position = nil
	case oldQty == 0:
		m.position = &broker.Position{Instrument: info.Instrument, Quantity: newQty, AveragePrice: m.lastPrice}
	case sameSide(oldQty, newQty) && abs(newQty) > abs(oldQty):
		weighted := oldAvg.Mul(decimal.NewFromInt(abs(oldQty))).
			Add(m.lastPrice.Mul(decimal.NewFromInt(abs(signed)))).
			Div(decimal.NewFromInt(abs(newQty)))
		m.position = &broker.Position{Instrument: info.Instrument, Quantity: newQty, AveragePrice: weighted}
	default:
		m.position = &broker.Position{Instrument: info.Instrument, Quantity: newQty, AveragePrice: oldAvg}
	}

	m.seq++
	orderID := fmt.Sprintf("mem-%d", m.seq)
	m.fills[orderID] = broker.Fill{Date: time.Now(), Price: m.lastPrice}
	return orderID, nil
}

func (m *memoryBroker) PlaceStopLossOrder(_ context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, stopPrice decimal.Decimal) (string, error) {
	return m.holdStopOrder(info, broker.OrderStopLoss, direction, qty, stopPrice), nil
}

func (m *memoryBroker) PlaceTakeProfitOrder(_ context.Context, info *broker.InstrumentInfo,
	direction broker.Direction, qty int64, targetPrice decimal.Decimal) (string, error) {
	return m.holdStopOrder(info, broker.OrderTakeProfit, direction, qty, targetPrice), nil
}

func (m *memoryBroker) holdStopOrder(info *broker.InstrumentInfo, orderType broker.OrderType,
	direction broker.Direction, qty int64, price decimal.Decimal) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	orderID := fmt.Sprintf("mem-%d", m.seq)
	key := info.Instrument.String()
	if m.stops[key] == nil {
		m.stops[key] = make(map[string]broker.StopOrder)
	}
	m.stops[key][orderID] = broker.StopOrder{
		OrderID:   orderID,
		Type:      orderType,
		Direction: direction,
		Quantity:  qty,
		StopPrice: &price,
	}
	return orderID
}

func (m *memoryBroker) CancelStopOrders(_ context.Context, orders []broker.StopOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range orders {
		for _, held := range m.stops {
			delete(held, order.OrderID)
		}
	}
	return nil
}

func (m *memoryBroker) GetCurrentStopOrders(_ context.Context, info *broker.InstrumentInfo) ([]broker.StopOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stops []broker.StopOrder
	for _, stop := range m.stops[info.Instrument.String()] {
		stops = append(stops, stop)
	}
	return stops, nil
}

func (m *memoryBroker) PullEnsureOrdersResult(_ context.Context, _ *broker.InstrumentInfo,
	orders []broker.EnsureOrder) ([]broker.EnsureOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range orders {
		if !orders[i].Type.IsTrade() {
			continue
		}
		fill, ok := m.fills[orders[i].OrderID]
		if !ok {
			return nil, broker.Errorf(broker.CodeOrderTradeNotFound,
				"order %s not found in trades", orders[i].OrderID)
		}
		orders[i].Fill = &fill
	}
	return orders, nil
}

func sameSide(a, b int64) bool {
	return (a > 0) == (b > 0)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
