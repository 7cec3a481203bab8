// Package notify delivers signal processing outcomes to a chat. Delivery
// is best-effort: callers log failures and move on, a lost notification
// never blocks or fails signal processing.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

// Slippage measures fill quality of one trade leg against the signal's
// declared entry. Positive price slippage is adverse for the leg's side.
type Slippage struct {
	Price *decimal.Decimal
	Time  *time.Duration
}

// Report is the outcome of one fully processed signal.
type Report struct {
	Account       string
	Signal        *models.Signal
	Info          *broker.InstrumentInfo
	InitPosition  *broker.Position
	FinalPosition *broker.Position
	Orders        []broker.EnsureOrder
	Slippage      map[string]Slippage
	Profit        *decimal.Decimal
	StopOrders    []broker.StopOrder
}

// ErrorReport describes a signal that failed to process.
type ErrorReport struct {
	Account string
	Signal  *models.Signal
	Title   string
	Details string
}

// Notifier publishes reports. Implementations must be safe for concurrent
// use; the dispatcher calls them from worker goroutines.
type Notifier interface {
	NotifyReport(ctx context.Context, report *Report) error
	NotifyError(ctx context.Context, report *ErrorReport) error
}

// Discard is a Notifier that drops everything. Useful when no chat is
// configured and in tests.
type Discard struct{}

func (Discard) NotifyReport(context.Context, *Report) error     { return nil }
func (Discard) NotifyError(context.Context, *ErrorReport) error { return nil }

var _ Notifier = Discard{}
