package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/models"
	"github.com/pkazmin/signal-dispatcher/internal/util"
)

func positionEmoji(p models.PositionState) string {
	switch p {
	case models.PositionLong:
		return "⬆️"
	case models.PositionShort:
		return "⬇️"
	default:
		return "➖"
	}
}

func sideEmoji(buy bool) string {
	if buy {
		return "⬆️"
	}
	return "⬇️"
}

func priceOrNA(p *decimal.Decimal) string {
	if p == nil {
		return "n/a"
	}
	return p.String()
}

// FormatReport renders a processed signal as a Telegram HTML message.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString("🛎️ <b>Trading Signal</b>\n\n")
	fmt.Fprintf(&b, "<i>%s</i>\n", r.Account)
	fmt.Fprintf(&b, "%s: %s <b>%s</b>\n",
		r.Signal.Instrument, positionEmoji(r.Signal.Position), strings.ToUpper(string(r.Signal.Position)))

	var entryData []string
	if r.Signal.EntryPrice != nil {
		entryData = append(entryData, r.Signal.EntryPrice.String())
	}
	if r.Signal.EntryTime != nil {
		entryData = append(entryData, r.Signal.EntryTime.Format(time.DateTime))
	}
	if len(entryData) > 0 {
		fmt.Fprintf(&b, "▶️ %s\n", strings.Join(entryData, " @ "))
	}

	if r.InitPosition != nil {
		fmt.Fprintf(&b, "\n◉ <b>Initial Position:</b> <b>%d</b> lots @ <b>%s</b>\n",
			r.InitPosition.Quantity, r.InitPosition.AveragePrice)
	} else {
		b.WriteString("\n◉ <b>Initial Position:</b> None\n")
	}

	if len(r.Orders) > 0 {
		b.WriteString("\n🔄 <b>Orders Placed</b>\n")
		for _, o := range r.Orders {
			switch {
			case o.Type.IsTrade():
				b.WriteString(formatTradeLeg(o, r.Slippage))
			case o.Type == broker.OrderStopLoss:
				fmt.Fprintf(&b, "⛔ SL: %d lots @ %s\n", o.Quantity, priceOrNA(o.Price))
			case o.Type == broker.OrderTakeProfit:
				fmt.Fprintf(&b, "🎯 TP: %d lots @ %s\n", o.Quantity, priceOrNA(o.Price))
			}
		}
	}

	if r.Profit != nil {
		profitEmoji := "🟢"
		if r.Profit.IsNegative() {
			profitEmoji = "🔴"
		}
		fmt.Fprintf(&b, "\n💰 <b>Profit</b>: %s <b>%s</b>\n", profitEmoji, r.Profit)
	}

	if r.FinalPosition != nil {
		fmt.Fprintf(&b, "\n● <b>Current Position:</b> <b>%d</b> lots @ <b>%s</b>\n",
			r.FinalPosition.Quantity, r.FinalPosition.AveragePrice)
	} else {
		b.WriteString("\n● <b>Current Position:</b> None\n")
	}

	if len(r.StopOrders) > 0 {
		b.WriteString("\n⏳ <b>Stop Orders</b>\n")
		stops := make([]broker.StopOrder, len(r.StopOrders))
		copy(stops, r.StopOrders)
		sort.SliceStable(stops, func(i, j int) bool { return stops[i].Type < stops[j].Type })
		for _, s := range stops {
			label := "⛔ SL"
			if s.Type == broker.OrderTakeProfit {
				label = "🎯 TP"
			}
			fmt.Fprintf(&b, "%s: %s %s %d lots @ <b>%s</b>\n",
				label, sideEmoji(s.Direction == broker.Buy), strings.ToUpper(string(s.Direction)),
				s.Quantity, priceOrNA(s.StopPrice))
		}
	}

	return b.String()
}

func formatTradeLeg(o broker.EnsureOrder, slippage map[string]Slippage) string {
	line := fmt.Sprintf("%s %s %d lots",
		sideEmoji(o.Type == broker.OrderBuy), strings.ToUpper(string(o.Type)), o.Quantity)
	if o.Fill != nil {
		line += " @ " + o.Fill.Price.String()
	}
	if o.Action != "" {
		line += fmt.Sprintf(" (%s)", o.Action)
	}
	if o.Fill != nil && o.Fill.Commission != nil {
		line += ", com. " + o.Fill.Commission.String()
	}

	var slpData []string
	if s, ok := slippage[o.OrderID]; ok {
		if s.Price != nil {
			slpData = append(slpData, s.Price.String())
		}
		if s.Time != nil {
			slpData = append(slpData, util.FormatDuration(*s.Time))
		}
	}
	if len(slpData) > 0 {
		line += ", slp. " + strings.Join(slpData, " @ ")
	}

	return line + "\n"
}

// FormatError renders a failed signal as a Telegram HTML message.
func FormatError(r *ErrorReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "❌ <b>%s</b>\n\n", r.Title)
	fmt.Fprintf(&b, "<i>%s</i>\n", r.Account)
	fmt.Fprintf(&b, "%s: %s <b>%s</b>\n\n",
		r.Signal.Instrument, positionEmoji(r.Signal.Position), strings.ToUpper(string(r.Signal.Position)))
	b.WriteString(r.Details)

	return b.String()
}
