// Package main provides a connectivity probe for a configured broker
// account. It runs read-only calls: nothing is ordered or cancelled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/broker/finam"
	"github.com/pkazmin/signal-dispatcher/internal/broker/tinvest"
	"github.com/pkazmin/signal-dispatcher/internal/config"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

func main() {
	var (
		configPath string
		account    string
		instrument string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&account, "account", "", "Account name from the config (required)")
	flag.StringVar(&instrument, "instrument", "", "Instrument to probe, e.g. SBER@TQBR or a FIGI (required)")
	flag.Parse()

	_ = godotenv.Load()

	if account == "" || instrument == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	accountCfg, ok := cfg.Accounts[account]
	if !ok {
		log.Fatalf("Account %q not found in config", account)
	}
	parsed, err := models.ParseInstrument(instrument)
	if err != nil {
		log.Fatalf("Bad instrument: %v", err)
	}

	logg := logrus.New()
	logg.SetLevel(logrus.WarnLevel)

	adapter, err := buildAdapter(accountCfg.Broker, logg)
	if err != nil {
		log.Fatalf("Failed to create broker: %v", err)
	}

	fmt.Println("=== Broker Connectivity Check ===")
	fmt.Printf("Broker:     %s\n", adapter.Name())
	fmt.Printf("Account:    %s\n", account)
	fmt.Printf("Instrument: %s\n", parsed)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := 0

	fmt.Println("Test 1: Resolve instrument")
	info, err := adapter.GetInstrumentInfo(ctx, parsed)
	switch {
	case err != nil:
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	case info == nil:
		fmt.Printf("❌ Instrument %s is unknown to the broker\n\n", parsed)
		failed++
	default:
		fmt.Println("✓ Instrument resolved:")
		fmt.Printf("  Name:           %s\n", info.Name)
		fmt.Printf("  Type:           %s\n", info.Type)
		fmt.Printf("  Currency:       %s\n", info.Currency)
		fmt.Printf("  Lot size:       %s\n", info.LotSize)
		fmt.Printf("  Min price step: %s\n", info.MinPriceStep)
		if !info.MarginBuy.IsZero() || !info.MarginSell.IsZero() {
			fmt.Printf("  Margin buy:     %s\n", info.MarginBuy)
			fmt.Printf("  Margin sell:    %s\n", info.MarginSell)
		}
		fmt.Println()
	}
	if info == nil {
		fmt.Printf("Remaining tests need a resolved instrument, stopping. Failed: %d\n", failed)
		os.Exit(1)
	}

	fmt.Println("Test 2: Last price")
	price, err := adapter.GetLastPrice(ctx, info)
	if err != nil {
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	} else {
		fmt.Printf("✓ Last price: %s %s\n\n", price, info.Currency)
	}

	fmt.Println("Test 3: Money balance")
	balance, err := adapter.GetMoneyBalance(ctx, info.Currency)
	if err != nil {
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	} else {
		fmt.Printf("✓ Available: %s %s\n\n", balance, info.Currency)
	}

	fmt.Println("Test 4: Current position")
	position, err := adapter.GetPosition(ctx, info)
	switch {
	case err != nil:
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	case position == nil:
		fmt.Printf("✓ No open position\n\n")
	default:
		fmt.Printf("✓ Position: %d lots, average price %s\n\n", position.Quantity, position.AveragePrice)
	}

	fmt.Println("Test 5: Active stop orders")
	stops, err := adapter.GetCurrentStopOrders(ctx, info)
	if err != nil {
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	} else {
		fmt.Printf("✓ Found %d stop order(s)\n", len(stops))
		for _, stop := range stops {
			price := "-"
			if stop.StopPrice != nil {
				price = stop.StopPrice.String()
			}
			fmt.Printf("  %s %s %d lots at %s (%s)\n", stop.Type, stop.Direction, stop.Quantity, price, stop.OrderID)
		}
		fmt.Println()
	}

	fmt.Println("Test 6: Position sizing dry run (100% leverage, no reserve)")
	qty, err := adapter.CalculatePositionSize(ctx, info,
		decimal.NewFromInt(100), decimal.Zero, models.PositionLong)
	if err != nil {
		fmt.Printf("❌ Error: %v\n\n", err)
		failed++
	} else {
		fmt.Printf("✓ Would open %d lot(s) long\n\n", qty)
	}

	if failed > 0 {
		fmt.Printf("Done with %d failure(s)\n", failed)
		os.Exit(1)
	}
	fmt.Println("All checks passed")
}

func buildAdapter(cfg config.BrokerConfig, log *logrus.Logger) (broker.Adapter, error) {
	switch cfg.Name {
	case config.ProviderFinam:
		return finam.New(cfg.Finam.Token, cfg.Finam.AccountID, log), nil
	case config.ProviderTinvest:
		return tinvest.New(cfg.Tinvest.Token, cfg.Tinvest.AccountID, cfg.Tinvest.SandboxMode, log)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Name)
	}
}
