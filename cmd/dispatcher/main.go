package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/api"
	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/broker/finam"
	"github.com/pkazmin/signal-dispatcher/internal/broker/tinvest"
	"github.com/pkazmin/signal-dispatcher/internal/config"
	"github.com/pkazmin/signal-dispatcher/internal/dispatcher"
	"github.com/pkazmin/signal-dispatcher/internal/logger"
	"github.com/pkazmin/signal-dispatcher/internal/notify"
	"github.com/pkazmin/signal-dispatcher/internal/processor"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Environment variables referenced by the config file may live in a
	// local .env; in containers they arrive from the runtime instead.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, logg); err != nil {
		logg.Fatalf("Dispatcher error: %v", err)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	var notifier notify.Notifier = notify.Discard{}
	if cfg.Telegram.Enabled() {
		telegram, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		if err != nil {
			return fmt.Errorf("creating telegram notifier: %w", err)
		}
		notifier = telegram
		log.Info("Telegram notifications enabled")
	} else {
		log.Info("Telegram notifications disabled")
	}

	processors := make(map[string]dispatcher.SignalProcessor, len(cfg.Accounts))
	var closers []io.Closer
	for name, account := range cfg.Accounts {
		adapter, err := buildAdapter(account.Broker, log)
		if err != nil {
			return fmt.Errorf("creating %s broker for account %q: %w", account.Broker.Name, name, err)
		}
		if closer, ok := adapter.(io.Closer); ok {
			closers = append(closers, closer)
		}

		guarded := broker.NewCircuitBreakerAdapter(adapter, log)
		processors[name] = processor.New(name, guarded, notifier, log)
		log.Infof("Account %q ready with %s broker", name, adapter.Name())
	}
	defer func() {
		for _, closer := range closers {
			if err := closer.Close(); err != nil {
				log.Warnf("Failed to close broker connection: %v", err)
			}
		}
	}()

	disp := dispatcher.New(processors, notifier, cfg.Dispatcher.Workers, log)
	server := api.NewServer(cfg.Server.ListenAddr, disp, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		disp.Stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	// Queued signals finish their reconciliation before the process exits.
	disp.Stop()
	log.Info("Dispatcher stopped")
	return nil
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
