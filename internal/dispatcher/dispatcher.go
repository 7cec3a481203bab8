// Package dispatcher serializes signal processing per account/instrument
// key. At most one signal per key is in flight at any time; at most one
// more waits behind it, and a newer signal for the same key overwrites
// the waiting one. Distinct keys process concurrently on a bounded pool.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/pkazmin/signal-dispatcher/internal/broker"
	"github.com/pkazmin/signal-dispatcher/internal/logger"
	"github.com/pkazmin/signal-dispatcher/internal/metrics"
	"github.com/pkazmin/signal-dispatcher/internal/models"
	"github.com/pkazmin/signal-dispatcher/internal/notify"
)

// DefaultWorkers bounds how many keys process concurrently.
const DefaultWorkers = 10

var (
	// ErrStopped rejects enqueues arriving after Stop.
	ErrStopped = errors.New("dispatcher is stopped")

	// ErrUnknownAccount rejects signals for accounts with no processor.
	ErrUnknownAccount = errors.New("unknown account")
)

// SignalProcessor executes one signal for one account.
type SignalProcessor interface {
	Process(ctx context.Context, sig *models.Signal) (*notify.Report, error)
}

// QueuedSignal is one signal's trip through the queue.
type QueuedSignal struct {
	Key     string
	Signal  *models.Signal
	Account string

	EnqueueTime     time.Time
	ProcessingStart time.Time
	ProcessingEnd   time.Time
}

// QueueItem is the wire form of one queued signal.
type QueueItem struct {
	Signal  *models.Signal `json:"signal"`
	Account string         `json:"account"`
}

// QueueSnapshot is the wire form of the queue state.
type QueueSnapshot struct {
	Processing []QueueItem `json:"processing"`
	Waiting    []QueueItem `json:"waiting"`
}

// Dispatcher owns the per-key queues and the worker pool draining them.
type Dispatcher struct {
	processors map[string]SignalProcessor
	notifier   notify.Notifier
	log        *logrus.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu         sync.Mutex
	processing map[string]*QueuedSignal
	waiting    map[string]*QueuedSignal
	stopped    bool
}

// New builds a dispatcher over per-account processors. workers bounds
// concurrent keys; non-positive means DefaultWorkers.
func New(processors map[string]SignalProcessor, notifier notify.Notifier, workers int, log *logrus.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		processors: processors,
		notifier:   notifier,
		log:        log,
		sem:        semaphore.NewWeighted(int64(workers)),
		processing: make(map[string]*QueuedSignal),
		waiting:    make(map[string]*QueuedSignal),
	}
}

// HasAccount reports whether a processor is configured for the account.
func (d *Dispatcher) HasAccount(account string) bool {
	_, ok := d.processors[account]
	return ok
}

// Enqueue queues a signal for asynchronous processing. The signal lands
// in the waiting slot for its account/instrument key, replacing whatever
// waited there before. Processing starts immediately unless another
// signal for the same key is already in flight; that one always finishes
// before the next starts.
func (d *Dispatcher) Enqueue(account string, sig *models.Signal) error {
	if _, ok := d.processors[account]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownAccount, account)
	}
	key := account + "/" + sig.Instrument.String()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}

	qs := &QueuedSignal{
		Key:         key,
		Signal:      sig,
		Account:     account,
		EnqueueTime: time.Now(),
	}

	if prev, ok := d.waiting[key]; ok {
		d.log.Infof("Replacing waiting signal %s for %s with new signal %s",
			prev.Signal.SignalID, key, sig.SignalID)
		metrics.SignalsReplaced.WithLabelValues(account).Inc()
	} else {
		d.log.Infof("Signal %s added waiting execution for %s", sig.SignalID, key)
	}
	d.waiting[key] = qs

	trigger := false
	if cur, ok := d.processing[key]; ok {
		d.log.Infof("Signal %s queued as next for %s (current %s is processing)",
			sig.SignalID, key, cur.Signal.SignalID)
	} else {
		d.log.Infof("Signal %s triggered processing for %s", sig.SignalID, key)
		trigger = true
		d.wg.Add(1)
	}
	metrics.SignalsEnqueued.WithLabelValues(account).Inc()
	d.updateGaugesLocked()
	d.mu.Unlock()

	if trigger {
		go d.runKey(key)
	}
	return nil
}

// runKey drains one key: promote the waiting signal, process it, and
// keep going while more signals arrive behind it. The semaphore slot is
// held across the whole drain, so a busy key cannot starve others of
// more than one worker.
func (d *Dispatcher) runKey(key string) {
	defer d.wg.Done()

	if err := d.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer d.sem.Release(1)

	for {
		qs := d.promote(key)
		if qs == nil {
			return
		}
		d.process(qs)
		if !d.finish(key) {
			return
		}
	}
}

// promote moves the waiting signal for key into the processing slot.
// Returns nil when another worker already owns the key or the waiting
// slot is empty, so concurrent triggers for one key collapse into one
// drain loop.
func (d *Dispatcher) promote(key string) *QueuedSignal {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.processing[key]; busy {
		return nil
	}
	qs, ok := d.waiting[key]
	if !ok {
		return nil
	}
	delete(d.waiting, key)
	d.processing[key] = qs
	d.updateGaugesLocked()
	return qs
}

// finish clears the processing slot and reports whether another signal
// waits behind it.
func (d *Dispatcher) finish(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.processing, key)
	d.updateGaugesLocked()

	if next, ok := d.waiting[key]; ok {
		d.log.Infof("Signal %s triggered processing as next for %s", next.Signal.SignalID, key)
		return true
	}
	d.log.Infof("No more signals waiting for %s", key)
	return false
}

func (d *Dispatcher) process(qs *QueuedSignal) {
	log := logger.WithSignal(d.log, qs.Signal.SignalID)
	qs.ProcessingStart = time.Now()

	log.Infof("Processing signal for %s...", qs.Key)

	// An in-flight reconciliation always runs to completion, even while
	// the dispatcher is shutting down.
	ctx := context.Background()

	outcome := "ok"
	report, err := d.processors[qs.Account].Process(ctx, qs.Signal)
	if err != nil {
		outcome = "error"
		var terr *broker.TradingError
		if errors.As(err, &terr) {
			log.Errorf("Trading error for %s: %s - %v", qs.Key, terr.Code, err)
			d.notifyError(log, qs, fmt.Sprintf("Trading Error: %s", terr.Code), err.Error())
		} else {
			log.Errorf("Unexpected error processing signal for %s: %v", qs.Key, err)
			d.notifyError(log, qs, "Signal Processing Error", err.Error())
		}
	} else {
		log.Infof("Processed signal for %s: %d orders placed", qs.Key, len(report.Orders))
	}

	qs.ProcessingEnd = time.Now()
	queueDur := qs.ProcessingStart.Sub(qs.EnqueueTime)
	procDur := qs.ProcessingEnd.Sub(qs.ProcessingStart)
	totalDur := qs.ProcessingEnd.Sub(qs.EnqueueTime)
	log.Infof("Timing info: queue=%.3fs, processing=%.3fs, total=%.3fs",
		queueDur.Seconds(), procDur.Seconds(), totalDur.Seconds())

	metrics.SignalsProcessed.WithLabelValues(qs.Account, outcome).Inc()
	metrics.ProcessingDuration.WithLabelValues(qs.Account).Observe(procDur.Seconds())
}

func (d *Dispatcher) notifyError(log *logrus.Entry, qs *QueuedSignal, title, details string) {
	report := &notify.ErrorReport{
		Account: qs.Account,
		Signal:  qs.Signal,
		Title:   title,
		Details: details,
	}
	if err := d.notifier.NotifyError(context.Background(), report); err != nil {
		log.Errorf("Failed to send error notification: %v", err)
	}
}

// QueueItems snapshots the processing and waiting slots.
func (d *Dispatcher) QueueItems() QueueSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := QueueSnapshot{
		Processing: make([]QueueItem, 0, len(d.processing)),
		Waiting:    make([]QueueItem, 0, len(d.waiting)),
	}
	for _, qs := range d.processing {
		snap.Processing = append(snap.Processing, QueueItem{Signal: qs.Signal, Account: qs.Account})
	}
	for _, qs := range d.waiting {
		snap.Waiting = append(snap.Waiting, QueueItem{Signal: qs.Signal, Account: qs.Account})
	}
	return snap
}

// Stop rejects further enqueues and waits for queued work to drain.
// Signals already waiting still process; their drain loops hold wg slots
// until every key empties.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("Stopped signal processing executor")
}

func (d *Dispatcher) updateGaugesLocked() {
	metrics.QueueProcessing.Set(float64(len(d.processing)))
	metrics.QueueWaiting.Set(float64(len(d.waiting)))
}
