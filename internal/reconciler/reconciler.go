// Package reconciler drives a broker position to the state a signal asks
// for. One Ensure pass cancels stale protective orders, issues the market
// orders that move the position, waits for the broker to settle, and
// installs fresh stops sized to the final quantity.
package reconciler

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// Request carries the target state for one reconciliation pass.
type Request struct {
	Info            *broker.InstrumentInfo
	InitPosition    *broker.Position
	Desired         models.PositionState
	LeveragePercent decimal.Decimal
	ReserveCapital  decimal.Decimal
	StopPrice       *decimal.Decimal
	TakePrice       *decimal.Decimal
}

// Result is what one pass did: the settled position and every order issued.
type Result struct {
	FinalPosition *broker.Position
	Orders        []broker.EnsureOrder
}

// Reconciler runs Ensure passes against one broker adapter. Instances are
// cheap; callers construct one per signal with a signal-scoped log entry.
type Reconciler struct {
	adapter broker.Adapter
	log     *logrus.Entry
}

func New(adapter broker.Adapter, log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{adapter: adapter, log: log}
}

// Ensure reconciles the broker position with the desired state. Any adapter
// failure aborts the pass and propagates; orders already placed stay live at
// the broker and the next signal re-reconciles from ground truth.
func (r *Reconciler) Ensure(ctx context.Context, req Request) (*Result, error) {
	var initQty int64
	if req.InitPosition != nil {
		initQty = req.InitPosition.Quantity
	}

	initStops, err := r.adapter.GetCurrentStopOrders(ctx, req.Info)
	if err != nil {
		return nil, err
	}

	var orders []broker.EnsureOrder
	var expectedQty int64

	appendTrade := func(direction broker.Direction, qty int64, action broker.OrderAction) error {
		orderID, err := r.adapter.PlaceMarketOrder(ctx, req.Info, direction, qty)
		if err != nil {
			return err
		}
		typ := broker.OrderBuy
		if direction == broker.Sell {
			typ = broker.OrderSell
		}
		r.log.Infof("Placed market %s for %d lots of %s (%s), order %s",
			direction, qty, req.Info.Instrument, action, orderID)
		orders = append(orders, broker.EnsureOrder{
			Type:     typ,
			Quantity: qty,
			OrderID:  orderID,
			Action:   action,
		})
		return nil
	}

	size := func(direction models.PositionState) (int64, error) {
		n, err := r.adapter.CalculatePositionSize(ctx, req.Info, req.LeveragePercent, req.ReserveCapital, direction)
		if err != nil {
			return 0, err
		}
		r.log.Infof("Position size for %s %s: %d lots", direction, req.Info.Instrument, n)
		return n, nil
	}

	switch req.Desired {
	case models.PositionLong:
		switch {
		case initQty < 0:
			if err := r.cancelStops(ctx, initStops); err != nil {
				return nil, err
			}
			if err := appendTrade(broker.Buy, -initQty, broker.ActionCloseShort); err != nil {
				return nil, err
			}
			n, err := size(models.PositionLong)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				if err := appendTrade(broker.Buy, n, broker.ActionOpenLong); err != nil {
					return nil, err
				}
			}
			expectedQty = n
		case initQty == 0:
			n, err := size(models.PositionLong)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				if err := appendTrade(broker.Buy, n, broker.ActionOpenLong); err != nil {
					return nil, err
				}
			}
			expectedQty = n
		default:
			expectedQty = initQty
		}

	case models.PositionShort:
		switch {
		case initQty > 0:
			if err := r.cancelStops(ctx, initStops); err != nil {
				return nil, err
			}
			if err := appendTrade(broker.Sell, initQty, broker.ActionCloseLong); err != nil {
				return nil, err
			}
			n, err := size(models.PositionShort)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				if err := appendTrade(broker.Sell, n, broker.ActionOpenShort); err != nil {
					return nil, err
				}
			}
			expectedQty = -n
		case initQty == 0:
			n, err := size(models.PositionShort)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				if err := appendTrade(broker.Sell, n, broker.ActionOpenShort); err != nil {
					return nil, err
				}
			}
			expectedQty = -n
		default:
			expectedQty = initQty
		}

	case models.PositionFlat:
		switch {
		case initQty > 0:
			if err := appendTrade(broker.Sell, initQty, broker.ActionCloseLong); err != nil {
				return nil, err
			}
		case initQty < 0:
			if err := appendTrade(broker.Buy, -initQty, broker.ActionCloseShort); err != nil {
				return nil, err
			}
		}
		expectedQty = 0

	default:
		return nil, broker.Errorf(broker.CodeInvalidPositionDirection,
			"unknown desired position %q", req.Desired)
	}

	finalPos, err := r.adapter.GetPositionWaitingForSettlement(ctx, req.Info, expectedQty,
		broker.DefaultSettlementAttempts, broker.DefaultSettlementDelay)
	if err != nil {
		return nil, err
	}

	finalStops, err := r.adapter.GetCurrentStopOrders(ctx, req.Info)
	if err != nil {
		return nil, err
	}

	var finalQty int64
	if finalPos != nil {
		finalQty = finalPos.Quantity
	}

	if finalQty != initQty || StopsNeedUpdate(finalStops, req.StopPrice, req.TakePrice) {
		stopOrders, err := r.refreshStops(ctx, req, finalStops, finalQty)
		if err != nil {
			return nil, err
		}
		orders = append(orders, stopOrders...)
	} else {
		r.log.Debugf("Stop orders for %s left untouched", req.Info.Instrument)
	}

	return &Result{FinalPosition: finalPos, Orders: orders}, nil
}

func (r *Reconciler) cancelStops(ctx context.Context, stops []broker.StopOrder) error {
	if len(stops) == 0 {
		return nil
	}
	if err := r.adapter.CancelStopOrders(ctx, stops); err != nil {
		return err
	}
	r.log.Infof("Cancelled %d stop orders", len(stops))
	return nil
}

// refreshStops replaces the active protective orders with ones covering the
// settled quantity. A long is covered by SELL stops, a short by BUY stops,
// a flat position by none.
func (r *Reconciler) refreshStops(ctx context.Context, req Request,
	active []broker.StopOrder, finalQty int64) ([]broker.EnsureOrder, error) {
	if err := r.cancelStops(ctx, active); err != nil {
		return nil, err
	}
	if finalQty == 0 {
		return nil, nil
	}

	direction := broker.Sell
	qty := finalQty
	if finalQty < 0 {
		direction = broker.Buy
		qty = -finalQty
	}

	var orders []broker.EnsureOrder
	if req.StopPrice != nil {
		orderID, err := r.adapter.PlaceStopLossOrder(ctx, req.Info, direction, qty, *req.StopPrice)
		if err != nil {
			return nil, err
		}
		r.log.Infof("Placed stop loss %s for %d lots @ %s, order %s", direction, qty, req.StopPrice, orderID)
		orders = append(orders, broker.EnsureOrder{
			Type:     broker.OrderStopLoss,
			Quantity: qty,
			OrderID:  orderID,
			Price:    req.StopPrice,
		})
	}
	if req.TakePrice != nil {
		orderID, err := r.adapter.PlaceTakeProfitOrder(ctx, req.Info, direction, qty, *req.TakePrice)
		if err != nil {
			return nil, err
		}
		r.log.Infof("Placed take profit %s for %d lots @ %s, order %s", direction, qty, req.TakePrice, orderID)
		orders = append(orders, broker.EnsureOrder{
			Type:     broker.OrderTakeProfit,
			Quantity: qty,
			OrderID:  orderID,
			Price:    req.TakePrice,
		})
	}
	return orders, nil
}

// StopsNeedUpdate reports whether the active protective orders disagree
// with the requested trigger prices. More than one order of a kind always
// disagrees. Otherwise the current trigger of each kind, absent when no
// such order exists, must equal the requested price; an absent price
// counts as a value distinct from any present one.
func StopsNeedUpdate(stops []broker.StopOrder, stopPrice, takePrice *decimal.Decimal) bool {
	var stopLosses, takeProfits []broker.StopOrder
	for _, s := range stops {
		switch s.Type {
		case broker.OrderStopLoss:
			stopLosses = append(stopLosses, s)
		case broker.OrderTakeProfit:
			takeProfits = append(takeProfits, s)
		}
	}

	if len(stopLosses) > 1 || len(takeProfits) > 1 {
		return true
	}
	var currentStop, currentTake *decimal.Decimal
	if len(stopLosses) == 1 {
		currentStop = stopLosses[0].StopPrice
	}
	if len(takeProfits) == 1 {
		currentTake = takeProfits[0].StopPrice
	}
	return !equalPrice(currentStop, stopPrice) || !equalPrice(currentTake, takePrice)
}

func equalPrice(a, b *decimal.Decimal) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}
