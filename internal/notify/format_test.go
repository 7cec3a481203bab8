package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func durPtr(d time.Duration) *time.Duration {
	return &d
}

func TestFormatReportFull(t *testing.T) {
	entryTime := time.Date(2025, 3, 14, 10, 29, 0, 0, time.UTC)
	commission := dec("1.2")

	report := &Report{
		Account: "alpha",
		Signal: &models.Signal{
			SignalID:   "abc12345",
			Position:   models.PositionLong,
			Instrument: models.Instrument{Ticker: "SBER", ClassCode: "TQBR"},
			EntryPrice: decPtr("291.5"),
			EntryTime:  &entryTime,
		},
		InitPosition: nil,
		FinalPosition: &broker.Position{
			Instrument:   models.Instrument{Ticker: "SBER", ClassCode: "TQBR"},
			Quantity:     5,
			AveragePrice: dec("291.75"),
		},
		Orders: []broker.EnsureOrder{
			{
				Type:     broker.OrderBuy,
				Quantity: 5,
				OrderID:  "ord-1",
				Action:   broker.ActionOpenLong,
				Fill:     &broker.Fill{Date: entryTime.Add(2 * time.Second), Price: dec("291.75"), Commission: &commission},
			},
			{Type: broker.OrderStopLoss, Quantity: 5, OrderID: "sl-1", Price: decPtr("288")},
			{Type: broker.OrderTakeProfit, Quantity: 5, OrderID: "tp-1", Price: decPtr("295")},
		},
		Slippage: map[string]Slippage{
			"ord-1": {Price: decPtr("0.25"), Time: durPtr(2 * time.Second)},
		},
		StopOrders: []broker.StopOrder{
			{OrderID: "tp-1", Type: broker.OrderTakeProfit, Direction: broker.Sell, Quantity: 5, StopPrice: decPtr("295")},
			{OrderID: "sl-1", Type: broker.OrderStopLoss, Direction: broker.Sell, Quantity: 5, StopPrice: decPtr("288")},
		},
	}

	want := "🛎️ <b>Trading Signal</b>\n\n" +
		"<i>alpha</i>\n" +
		"SBER@TQBR: ⬆️ <b>LONG</b>\n" +
		"▶️ 291.5 @ 2025-03-14 10:29:00\n" +
		"\n◉ <b>Initial Position:</b> None\n" +
		"\n🔄 <b>Orders Placed</b>\n" +
		"⬆️ BUY 5 lots @ 291.75 (open_long), com. 1.2, slp. 0.25 @ 2s\n" +
		"⛔ SL: 5 lots @ 288\n" +
		"🎯 TP: 5 lots @ 295\n" +
		"\n● <b>Current Position:</b> <b>5</b> lots @ <b>291.75</b>\n" +
		"\n⏳ <b>Stop Orders</b>\n" +
		"⛔ SL: ⬇️ SELL 5 lots @ <b>288</b>\n" +
		"🎯 TP: ⬇️ SELL 5 lots @ <b>295</b>\n"

	got := FormatReport(report)
	if got != want {
		t.Errorf("FormatReport mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatReportProfitAndClose(t *testing.T) {
	report := &Report{
		Account: "beta",
		Signal: &models.Signal{
			SignalID:   "def45678",
			Position:   models.PositionFlat,
			Instrument: models.Instrument{Ticker: "SiU5", ClassCode: "RFUD"},
		},
		InitPosition: &broker.Position{
			Instrument:   models.Instrument{Ticker: "SiU5", ClassCode: "RFUD"},
			Quantity:     -2,
			AveragePrice: dec("91000"),
		},
		Orders: []broker.EnsureOrder{
			{
				Type:     broker.OrderBuy,
				Quantity: 2,
				OrderID:  "ord-9",
				Action:   broker.ActionCloseShort,
				Fill:     &broker.Fill{Date: time.Now(), Price: dec("90500")},
			},
		},
		Profit: decPtr("1000"),
	}

	got := FormatReport(report)

	for _, fragment := range []string{
		"SiU5@RFUD: ➖ <b>FLAT</b>",
		"◉ <b>Initial Position:</b> <b>-2</b> lots @ <b>91000</b>",
		"⬆️ BUY 2 lots @ 90500 (close_short)",
		"💰 <b>Profit</b>: 🟢 <b>1000</b>",
		"● <b>Current Position:</b> None",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("message missing %q\ngot:\n%s", fragment, got)
		}
	}

	// No commission on the fill, none rendered.
	if strings.Contains(got, "com.") {
		t.Errorf("message should not mention commission:\n%s", got)
	}
	// No stop orders section for a flat result.
	if strings.Contains(got, "Stop Orders") {
		t.Errorf("message should not list stop orders:\n%s", got)
	}
}

func TestFormatReportNegativeProfit(t *testing.T) {
	report := &Report{
		Account: "alpha",
		Signal: &models.Signal{
			Position:   models.PositionFlat,
			Instrument: models.Instrument{Ticker: "SBER", ClassCode: "TQBR"},
		},
		Profit: decPtr("-150.5"),
	}

	got := FormatReport(report)
	if !strings.Contains(got, "💰 <b>Profit</b>: 🔴 <b>-150.5</b>") {
		t.Errorf("negative profit should use the red marker:\n%s", got)
	}
}

func TestFormatError(t *testing.T) {
	report := &ErrorReport{
		Account: "alpha",
		Signal: &models.Signal{
			SignalID:   "abc12345",
			Position:   models.PositionLong,
			Instrument: models.Instrument{Ticker: "UNKNOWN", ClassCode: "TQBR"},
		},
		Title:   "Trading Error: INSTRUMENT_NOT_FOUND",
		Details: "INSTRUMENT_NOT_FOUND: instrument UNKNOWN@TQBR not found",
	}

	want := "❌ <b>Trading Error: INSTRUMENT_NOT_FOUND</b>\n\n" +
		"<i>alpha</i>\n" +
		"UNKNOWN@TQBR: ⬆️ <b>LONG</b>\n\n" +
		"INSTRUMENT_NOT_FOUND: instrument UNKNOWN@TQBR not found"

	got := FormatError(report)
	if got != want {
		t.Errorf("FormatError mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}
