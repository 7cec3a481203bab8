// Integration drives the full dispatcher stack end to end against an
// in-memory broker: HTTP enqueue, per-key queueing, reconciliation,
// order placement and the report pipeline. It needs no credentials and
// exits non-zero on the first failed check.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pkazmin/signal-dispatcher/internal/api"
	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/dispatcher"
	"github.com/pkazmin/signal-dispatcher/internal/logger"
	"github.com/pkazmin/signal-dispatcher/internal/models"
	"github.com/pkazmin/signal-dispatcher/internal/notify"
	"github.com/pkazmin/signal-dispatcher/internal/processor"
)

const (
	account    = "paper"
	instrument = "SBER@TQBR"
)

// consoleNotifier prints reports to stdout and counts them so the run
// can assert how many signals completed or failed.
type consoleNotifier struct {
	mu      sync.Mutex
	reports int
	errors  int
}

func (c *consoleNotifier) NotifyReport(_ context.Context, report *notify.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports++
	fmt.Println(notify.FormatReport(report))
	return nil
}

func (c *consoleNotifier) NotifyError(_ context.Context, report *notify.ErrorReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
	fmt.Println(notify.FormatError(report))
	return nil
}

func (c *consoleNotifier) counts() (reports, errs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reports, c.errors
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8712", "listen address for the test server")
	logLevel := flag.String("log-level", "warn", "log level during the run")
	flag.Parse()

	logg, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()

	// 100000 cash at 250 per unit with a 10-unit lot gives a 2500 lot
	// cost, so a 50% leverage cap buys exactly 20 lots.
	mem := newMemoryBroker(decimal.NewFromInt(250), decimal.NewFromInt(100000))
	guarded := broker.NewCircuitBreakerAdapter(mem, logg)
	reporter := &consoleNotifier{}

	processors := map[string]dispatcher.SignalProcessor{
		account: processor.New(account, guarded, reporter, logg),
	}
	disp := dispatcher.New(processors, reporter, 2, logg)
	server := api.NewServer(*addr, disp, logg)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	baseURL := "http://" + *addr
	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println("=== Dispatcher integration run ===")

	step(1, "server healthy", waitForServer(client, baseURL))

	status, body := postSignal(client, baseURL, fmt.Sprintf(
		`{"signal_id":"smoke-long","position":"long","instrument":%q,"stop_price":"240","capital_leverage_percent":"50"}`,
		instrument))
	step(2, "enqueue long signal", expectStatus(status, body, http.StatusAccepted))
	step(3, "queue drained", waitForDrain(client, baseURL))

	info, err := mem.GetInstrumentInfo(ctx, mustInstrument())
	if err != nil {
		fail("resolve instrument: %v", err)
	}

	position, err := mem.GetPosition(ctx, info)
	step(4, "long position of 20 lots held", func() error {
		if err != nil {
			return err
		}
		if position == nil {
			return errors.New("no position after long signal")
		}
		if position.Quantity != 20 {
			return fmt.Errorf("position quantity = %d, want 20", position.Quantity)
		}
		if !position.AveragePrice.Equal(decimal.NewFromInt(250)) {
			return fmt.Errorf("average price = %s, want 250", position.AveragePrice)
		}
		return nil
	}())

	stops, err := mem.GetCurrentStopOrders(ctx, info)
	step(5, "protective stop placed", func() error {
		if err != nil {
			return err
		}
		if len(stops) != 1 {
			return fmt.Errorf("stop orders = %d, want 1", len(stops))
		}
		stop := stops[0]
		if stop.Type != broker.OrderStopLoss || stop.Direction != broker.Sell {
			return fmt.Errorf("stop order is %s/%s, want %s/%s",
				stop.Type, stop.Direction, broker.OrderStopLoss, broker.Sell)
		}
		if stop.Quantity != 20 {
			return fmt.Errorf("stop quantity = %d, want 20", stop.Quantity)
		}
		if stop.StopPrice == nil || !stop.StopPrice.Equal(decimal.NewFromInt(240)) {
			return fmt.Errorf("stop price = %v, want 240", stop.StopPrice)
		}
		return nil
	}())

	status, body = postSignal(client, baseURL, fmt.Sprintf(
		`{"signal_id":"smoke-flat","position":"flat","instrument":%q}`, instrument))
	step(6, "enqueue flat signal", expectStatus(status, body, http.StatusAccepted))
	step(7, "queue drained", waitForDrain(client, baseURL))

	position, err = mem.GetPosition(ctx, info)
	step(8, "position closed", func() error {
		if err != nil {
			return err
		}
		if position != nil {
			return fmt.Errorf("position still holds %d lots", position.Quantity)
		}
		return nil
	}())

	stops, err = mem.GetCurrentStopOrders(ctx, info)
	step(9, "stop orders cancelled", func() error {
		if err != nil {
			return err
		}
		if len(stops) != 0 {
			return fmt.Errorf("stop orders = %d, want 0", len(stops))
		}
		return nil
	}())

	reports, errs := reporter.counts()
	step(10, "two reports, no errors", func() error {
		if reports != 2 || errs != 0 {
			return fmt.Errorf("reports = %d, errors = %d, want 2 and 0", reports, errs)
		}
		return nil
	}())

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fail("server shutdown: %v", err)
	}
	disp.Stop()

	fmt.Println("\nAll steps passed")
}

func step(n int, name string, err error) {
	if err != nil {
		fmt.Printf("%2d. %s... ❌ %v\n", n, name, err)
		os.Exit(1)
	}
	fmt.Printf("%2d. %s... ✓\n", n, name)
}

func fail(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}

func mustInstrument() models.Instrument {
	inst, err := models.ParseInstrument(instrument)
	if err != nil {
		fail("parse instrument: %v", err)
	}
	return inst
}

func postSignal(client *http.Client, baseURL, body string) (int, string) {
	resp, err := client.Post(baseURL+"/signals/enqueue/"+account, "application/json",
		strings.NewReader(body))
	if err != nil {
		fail("post signal: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, strings.TrimSpace(string(payload))
}

func expectStatus(status int, body string, want int) error {
	if status != want {
		return fmt.Errorf("status %d, want %d: %s", status, want, body)
	}
	return nil
}

func waitForServer(client *http.Client, baseURL string) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return errors.New("server did not come up within 5s")
}

func waitForDrain(client *http.Client, baseURL string) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var snapshot struct {
			Processing []json.RawMessage `json:"processing"`
			Waiting    []json.RawMessage `json:"waiting"`
		}
		resp, err := client.Get(baseURL + "/signals/queue")
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&snapshot)
			_ = resp.Body.Close()
			if err == nil && len(snapshot.Processing) == 0 && len(snapshot.Waiting) == 0 {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return errors.New("queue did not drain within 10s")
}
