// Package processor executes one trading signal end to end: resolve the
// instrument, reconcile the broker position, hydrate fills, derive
// slippage and realized profit, and hand the report to the notifier.
package processor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/logger"
	"github.com/pkazmin/signal-dispatcher/internal/models"
	"github.com/pkazmin/signal-dispatcher/internal/notify"
	"github.com/pkazmin/signal-dispatcher/internal/reconciler"
)

// Processor runs signals for one account against one broker adapter.
type Processor struct {
	account  string
	adapter  broker.Adapter
	notifier notify.Notifier
	log      *logrus.Logger
}

func New(account string, adapter broker.Adapter, notifier notify.Notifier, log *logrus.Logger) *Processor {
	return &Processor{
		account:  account,
		adapter:  adapter,
		notifier: notifier,
		log:      log,
	}
}

// Account returns the account this processor trades.
func (p *Processor) Account() string {
	return p.account
}

// Process drives the broker position to the signal's target and reports
// what was done. A success notification goes out only when at least one
// order was issued; notification failures are logged, never propagated.
func (p *Processor) Process(ctx context.Context, sig *models.Signal) (*notify.Report, error) {
	log := logger.WithSignal(p.log, sig.SignalID)

	info, err := p.adapter.GetInstrumentInfo(ctx, sig.Instrument)
	if err != nil {
		return nil, fmt.Errorf("resolving instrument %s: %w", sig.Instrument, err)
	}
	if info == nil {
		return nil, broker.Errorf(broker.CodeInstrumentNotFound, "instrument %s not found", sig.Instrument)
	}
	log.Infof("Resolved %s: %s (%s, lot size %s)", sig.Instrument, info.Name, info.Type, info.LotSize)

	initPos, err := p.adapter.GetPosition(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("reading position: %w", err)
	}
	if initPos != nil {
		log.Infof("Initial position: %d lots @ %s", initPos.Quantity, initPos.AveragePrice)
	} else {
		log.Info("Initial position: none")
	}

	rec := reconciler.New(p.adapter, log)
	res, err := rec.Ensure(ctx, reconciler.Request{
		Info:            info,
		InitPosition:    initPos,
		Desired:         sig.Position,
		LeveragePercent: sig.CapitalLeveragePercent,
		ReserveCapital:  sig.ReserveCapital,
		StopPrice:       sig.StopPrice,
		TakePrice:       sig.LimitPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring %s position: %w", sig.Position, err)
	}

	orders := res.Orders
	if len(orders) > 0 {
		orders, err = p.adapter.PullEnsureOrdersResult(ctx, info, orders)
		if err != nil {
			return nil, fmt.Errorf("pulling order results: %w", err)
		}
	}

	stops, err := p.adapter.GetCurrentStopOrders(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("reading stop orders: %w", err)
	}

	report := &notify.Report{
		Account:       p.account,
		Signal:        sig,
		Info:          info,
		InitPosition:  initPos,
		FinalPosition: res.FinalPosition,
		Orders:        orders,
		Slippage:      ComputeSlippage(sig, orders),
		Profit:        ComputeProfit(initPos, orders, info.LotSize),
		StopOrders:    stops,
	}

	if len(orders) > 0 {
		if err := p.notifier.NotifyReport(ctx, report); err != nil {
			log.Warnf("Failed to send report notification: %v", err)
		}
	} else {
		log.Info("No orders issued, skipping notification")
	}

	return report, nil
}

// ComputeSlippage measures each filled trade leg against the signal's
// declared entry, keyed by order id. Price slippage is direction-adjusted:
// positive always means the fill was worse than the declared entry. Nil
// when the signal declares no entry data.
func ComputeSlippage(sig *models.Signal, orders []broker.EnsureOrder) map[string]notify.Slippage {
	if sig.EntryPrice == nil && sig.EntryTime == nil {
		return nil
	}

	out := make(map[string]notify.Slippage)
	for _, o := range orders {
		if !o.Type.IsTrade() || o.Fill == nil {
			continue
		}

		var s notify.Slippage
		if sig.EntryPrice != nil {
			buying := o.Action == broker.ActionOpenLong || o.Action == broker.ActionCloseShort
			if o.Action == "" {
				buying = o.Type == broker.OrderBuy
			}
			var d decimal.Decimal
			if buying {
				d = o.Fill.Price.Sub(*sig.EntryPrice)
			} else {
				d = sig.EntryPrice.Sub(o.Fill.Price)
			}
			s.Price = &d
		}
		if sig.EntryTime != nil {
			dt := o.Fill.Date.Sub(*sig.EntryTime)
			s.Time = &dt
		}
		out[o.OrderID] = s
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// ComputeProfit sums the realized profit of the legs that closed the prior
// position. Nil when there was no prior position or nothing closed it.
func ComputeProfit(init *broker.Position, orders []broker.EnsureOrder, lotSize decimal.Decimal) *decimal.Decimal {
	if init == nil || init.Quantity == 0 {
		return nil
	}

	closing := broker.ActionCloseLong
	sign := decimal.NewFromInt(1)
	if init.Quantity < 0 {
		closing = broker.ActionCloseShort
		sign = decimal.NewFromInt(-1)
	}

	var total decimal.Decimal
	closed := false
	for _, o := range orders {
		if o.Action != closing || o.Fill == nil {
			continue
		}
		legPnL := sign.
			Mul(o.Fill.Price.Sub(init.AveragePrice)).
			Mul(decimal.NewFromInt(o.Quantity)).
			Mul(lotSize)
		total = total.Add(legPnL)
		closed = true
	}

	if !closed {
		return nil
	}
	return &total
}
