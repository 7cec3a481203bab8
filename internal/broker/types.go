package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// InstrumentType classifies a resolved instrument.
type InstrumentType string

const (
	InstrumentShare    InstrumentType = "share"
	InstrumentFuture   InstrumentType = "future"
	InstrumentBond     InstrumentType = "bond"
	InstrumentETF      InstrumentType = "etf"
	InstrumentCurrency InstrumentType = "currency"
)

// Direction is the side of a trade or stop order.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// OrderType tags orders in an ensure report. Trade legs are buy/sell;
// protective legs are stop_loss/take_profit.
type OrderType string

const (
	OrderBuy        OrderType = "buy"
	OrderSell       OrderType = "sell"
	OrderStopLoss   OrderType = "stop_loss"
	OrderTakeProfit OrderType = "take_profit"
)

// IsTrade reports whether the order is a market trade leg.
func (t OrderType) IsTrade() bool {
	return t == OrderBuy || t == OrderSell
}

// OrderAction records why a trade leg was issued during reconciliation.
type OrderAction string

const (
	ActionOpenLong   OrderAction = "open_long"
	ActionOpenShort  OrderAction = "open_short"
	ActionCloseLong  OrderAction = "close_long"
	ActionCloseShort OrderAction = "close_short"
)

// InstrumentInfo describes a tradable instrument as resolved by a broker.
// MarginBuy/MarginSell are the initial margin per lot when the broker
// exposes them; a zero value means the figure is unavailable.
type InstrumentInfo struct {
	Instrument   models.Instrument
	Name         string
	Type         InstrumentType
	Currency     string
	LotSize      decimal.Decimal
	MinPriceStep decimal.Decimal
	MarginBuy    decimal.Decimal
	MarginSell   decimal.Decimal
}

// Position is a broker-side position in one instrument. Quantity is signed
// lots, positive for long. A non-zero quantity with a zero average price
// means the broker has not settled the position yet.
type Position struct {
	Instrument   models.Instrument
	Quantity     int64
	AveragePrice decimal.Decimal
}

// Fill is the execution result of a trade leg. Commission stays nil when
// the broker does not report one.
type Fill struct {
	Date       time.Time
	Price      decimal.Decimal
	Commission *decimal.Decimal
}

// EnsureOrder is one order issued while reconciling a position. Action is
// set on trade legs; Price carries the requested trigger on stop legs;
// Fill is populated by PullEnsureOrdersResult for trade legs.
type EnsureOrder struct {
	Type     OrderType
	Quantity int64
	OrderID  string
	Action   OrderAction
	Price    *decimal.Decimal
	Fill     *Fill
}

// StopOrder is an active protective order observed at the broker.
type StopOrder struct {
	OrderID   string
	Type      OrderType
	Direction Direction
	Quantity  int64
	StopPrice *decimal.Decimal
}
