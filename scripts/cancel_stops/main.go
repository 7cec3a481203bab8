// cancel_stops - A utility to cancel active protective stop orders.
// This script will:
// 1. List the active stop orders for one account/instrument
// 2. Ask for confirmation (skippable with -yes)
// 3. Cancel them one by one and report the outcome
//
// Use it before taking manual control of a position: the dispatcher
// re-creates protective orders on the next signal anyway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/broker/finam"
	"github.com/pkazmin/signal-dispatcher/internal/broker/tinvest"
	"github.com/pkazmin/signal-dispatcher/internal/config"
	"github.com/pkazmin/signal-dispatcher/internal/models"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		account    = flag.String("account", "", "Account name from the config (required)")
		instrument = flag.String("instrument", "", "Instrument whose stops to cancel (required)")
		dryRun     = flag.Bool("dry-run", false, "Show what would be cancelled without making changes")
		yes        = flag.Bool("yes", false, "Skip confirmation prompt")
	)
	flag.Parse()

	_ = godotenv.Load()

	if *account == "" || *instrument == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	accountCfg, ok := cfg.Accounts[*account]
	if !ok {
		log.Fatalf("Account %q not found in config", *account)
	}
	parsed, err := models.ParseInstrument(*instrument)
	if err != nil {
		log.Fatalf("Bad instrument: %v", err)
	}

	logg := logrus.New()
	logg.SetLevel(logrus.WarnLevel)

	adapter, err := buildAdapter(accountCfg.Broker, logg)
	if err != nil {
		log.Fatalf("Failed to create broker: %v", err)
	}

	fmt.Println("=== Stop Order Cleanup ===")
	fmt.Printf("Broker:     %s\n", adapter.Name())
	fmt.Printf("Account:    %s\n", *account)
	fmt.Printf("Instrument: %s\n", parsed)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := adapter.GetInstrumentInfo(ctx, parsed)
	if err != nil {
		log.Fatalf("Failed to resolve instrument: %v", err)
	}
	if info == nil {
		log.Fatalf("Instrument %s is unknown to the broker", parsed)
	}

	stops, err := adapter.GetCurrentStopOrders(ctx, info)
	if err != nil {
		log.Fatalf("Failed to list stop orders: %v", err)
	}
	if len(stops) == 0 {
		fmt.Println("No active stop orders, nothing to do")
		return
	}

	fmt.Printf("Active stop orders (%d):\n", len(stops))
	for _, stop := range stops {
		price := "-"
		if stop.StopPrice != nil {
			price = stop.StopPrice.String()
		}
		fmt.Printf("  %s %s %d lots at %s (%s)\n", stop.Type, stop.Direction, stop.Quantity, price, stop.OrderID)
	}
	fmt.Println()

	if *dryRun {
		fmt.Printf("DRY RUN: would cancel %d stop order(s)\n", len(stops))
		return
	}

	if !*yes {
		fmt.Print("Proceed? (yes/no): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			fmt.Printf("Error reading input: %v\n", err)
			return
		}
		if response != "yes" && response != "y" {
			fmt.Println("Cancelled, nothing done")
			return
		}
	}

	cancelled := 0
	for _, stop := range stops {
		fmt.Printf("Cancelling order %s...", stop.OrderID)
		if err := adapter.CancelStopOrders(ctx, []broker.StopOrder{stop}); err != nil {
			fmt.Printf(" ❌ Failed: %v\n", err)
		} else {
			fmt.Println(" ✓")
			cancelled++
		}
	}

	fmt.Printf("\nCancelled %d of %d stop order(s)\n", cancelled, len(stops))
	if cancelled < len(stops) {
		os.Exit(1)
	}
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
