// Package dispatcher drains the input event queue into the timer state
// machine. A single dispatcher goroutine is the only writer of timer
// state and the attempt history, which is what keeps event handling
// strictly ordered without locking in the domain layer.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/timer"
	"github.com/okian/klepsydra/pkg/logger"
	"github.com/okian/klepsydra/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultPollInterval     = 50 * time.Millisecond
	metricsUpdateInterval   = 5 * time.Second
	dispatcherShutdownGrace = 5 * time.Second
)

// Event abstracts what the dispatcher reads off the queue.
// Using the model.InputEvent type for consistency.
type Event = model.InputEvent

// Queue defines how the dispatcher receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Appender persists finished attempts.
type Appender interface {
	Append(ctx context.Context, a model.Attempt) error
}

// Scrambler supplies the scramble attached to each attempt.
type Scrambler interface {
	Next(ctx context.Context) (string, error)
}

// Dispatcher owns the timer state machine and applies queued events to
// it one at a time. It also runs the inspection timeout poll: the
// machine never times out on its own, so the dispatcher watches for
// expiry and forces the DNF.
type Dispatcher struct {
	queue     Queue
	machine   *timer.Machine
	gate      *timer.HoldGate
	store     Appender
	scrambler Scrambler
	onAppend  func(ctx context.Context, a model.Attempt)

	pollInterval time.Duration

	// Scramble prepared for the attempt currently in flight.
	currentScramble string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Metrics tracking
	processedCount    int64
	lastProcessedTime time.Time

	// Logging
	logger logger.Logger
}

// New creates a dispatcher that applies events from queue to machine
// and persists finished attempts to store.
func New(queue Queue, machine *timer.Machine, gate *timer.HoldGate, store Appender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:             queue,
		machine:           machine,
		gate:              gate,
		store:             store,
		pollInterval:      defaultPollInterval,
		shutdown:          make(chan struct{}),
		done:              make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("dispatcher"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run starts the dispatch loop. It returns when the context is
// cancelled, Shutdown is called, or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	defer func() {
		close(d.done)
	}()

	eventChan := d.queue.Dequeue(ctx)

	poll := time.NewTicker(d.pollInterval)
	defer poll.Stop()

	metricsTick := time.NewTicker(metricsUpdateInterval)
	defer metricsTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case <-poll.C:
			d.pollInspection(ctx)
		case <-metricsTick.C:
			d.updateMetrics()
		case event, ok := <-eventChan:
			if !ok {
				// Channel closed, dispatcher should stop
				return
			}
			d.processEvent(ctx, event)
		}
	}
}

// Shutdown gracefully stops the dispatcher.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, dispatcherShutdownGrace)
	defer cancel()

	select {
	case <-d.done:
		return nil
	case <-shutdownCtx.Done():
		d.logger.Warn(ctx, "dispatcher shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}

// processEvent applies a single raw input event.
func (d *Dispatcher) processEvent(ctx context.Context, event Event) {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000.0)
		metrics.UpdateTimerState(int(d.machine.State()))
		d.processedCount++
	}()

	switch event.Kind {
	case model.EventPress:
		// A press while the solve is running stops it immediately; the
		// hold-to-start threshold only guards starting.
		if d.machine.State() == timer.StateRunning {
			d.gate.Reset()
			d.toggle(ctx)
			return
		}
		d.gate.Press()
	case model.EventRelease:
		if d.gate.Release() {
			d.toggle(ctx)
		}
	case model.EventToggle:
		d.gate.Reset()
		d.toggle(ctx)
	default:
		metrics.RecordDispatchError()
		metrics.RecordErrorByComponent("dispatcher", "unknown_event_kind")
		d.logger.Warn(ctx, "ignoring unknown event kind",
			logger.String("eventID", event.EventID),
			logger.Int("kind", int(event.Kind)),
		)
	}
}

// toggle feeds one toggle into the machine and reacts to the resulting
// transition.
func (d *Dispatcher) toggle(ctx context.Context) {
	before := d.machine.State()
	if !d.machine.Dispatch() {
		return
	}
	after := d.machine.State()

	switch {
	case before == timer.StateIdle || before == timer.StateStopped:
		// A fresh attempt began; prepare its scramble.
		d.refreshScramble(ctx)
	case after == timer.StateStopped:
		d.finalize(ctx)
	}
}

// pollInspection enforces the inspection timeout. Past the point of no
// return the attempt is recorded as a DNF without any solve phase.
func (d *Dispatcher) pollInspection(ctx context.Context) {
	if !d.machine.InspectionExpired() {
		return
	}
	if !d.machine.ForceDNF() {
		return
	}
	metrics.RecordInspectionTimeout()
	d.logger.Info(ctx, "inspection timed out, recording DNF")
	d.finalize(ctx)
	metrics.UpdateTimerState(int(d.machine.State()))
}

// finalize persists the machine's completed result as an attempt.
func (d *Dispatcher) finalize(ctx context.Context) {
	res := d.machine.Result()
	if res == nil {
		return
	}

	attempt := model.Attempt{
		ID:          uuid.NewString(),
		OrderingKey: time.Now().UnixMilli(),
		Scramble:    d.currentScramble,
		Result:      *res,
	}
	d.currentScramble = ""

	if err := d.store.Append(ctx, attempt); err != nil {
		metrics.RecordDispatchError()
		metrics.RecordErrorByComponent("dispatcher", "append_failed")
		d.logger.Error(ctx, "failed to persist attempt",
			logger.String("attemptID", attempt.ID),
			logger.Error(err),
		)
		return
	}

	metrics.RecordAttemptCompleted()
	if res.FinalMS == nil {
		metrics.RecordAttemptDNF()
	}

	if d.onAppend != nil {
		d.onAppend(ctx, attempt)
	}
}

// refreshScramble fetches the scramble for the attempt that just began.
func (d *Dispatcher) refreshScramble(ctx context.Context) {
	if d.scrambler == nil {
		return
	}
	s, err := d.scrambler.Next(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("dispatcher", "scramble_failed")
		d.logger.Warn(ctx, "scramble generation failed", logger.Error(err))
		return
	}
	d.currentScramble = s
}

// updateMetrics refreshes the events-per-second gauge.
func (d *Dispatcher) updateMetrics() {
	now := time.Now()
	timeDiff := now.Sub(d.lastProcessedTime).Seconds()
	if timeDiff > 0 {
		metrics.UpdateDispatcherEventsPerSecond(float64(d.processedCount) / timeDiff)
	}
	d.processedCount = 0
	d.lastProcessedTime = now
}
