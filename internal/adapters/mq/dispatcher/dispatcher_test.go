package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/klepsydra/internal/adapters/mq/queue"
	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/timer"
	"github.com/okian/klepsydra/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeClock is a manually advanced clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) NowMS() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

// captureStore collects appended attempts on a channel.
type captureStore struct {
	appended chan model.Attempt
}

func newCaptureStore() *captureStore {
	return &captureStore{appended: make(chan model.Attempt, 16)}
}

func (s *captureStore) Append(_ context.Context, a model.Attempt) error {
	s.appended <- a
	return nil
}

type fixedScrambler struct{}

func (fixedScrambler) Next(context.Context) (string, error) { return "R U R' U'", nil }

type harness struct {
	clock  *fakeClock
	queue  *queue.InMemoryQueue
	store  *captureStore
	cancel context.CancelFunc
}

func newHarness(t *testing.T, inspectionMS, holdMS int64) *harness {
	t.Helper()

	clock := &fakeClock{}
	q := queue.NewInMemoryQueue(queue.WithCapacity(64))
	store := newCaptureStore()

	machine := timer.NewMachine(clock, timer.WithInspectionLimit(inspectionMS))
	gate := timer.NewHoldGate(clock, holdMS)

	d := New(q, machine, gate, store,
		WithScrambler(fixedScrambler{}),
		WithPollInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		q.Close()
	})

	return &harness{clock: clock, queue: q, store: store, cancel: cancel}
}

func (h *harness) send(t *testing.T, kind model.EventKind) {
	t.Helper()
	e := model.InputEvent{EventID: "e", Kind: kind, At: h.clock.NowMS()}
	if !h.queue.Enqueue(context.Background(), e) {
		t.Fatal("enqueue failed")
	}
	// Give the dispatcher goroutine time to drain the event before the
	// test advances the clock.
	time.Sleep(20 * time.Millisecond)
}

func (h *harness) waitAttempt(t *testing.T) model.Attempt {
	t.Helper()
	select {
	case a := <-h.store.appended:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appended attempt")
		return model.Attempt{}
	}
}

func TestDispatcherCompletesAttempt(t *testing.T) {
	h := newHarness(t, 15000, 0)

	h.send(t, model.EventToggle) // idle -> inspection
	h.clock.advance(3000)
	h.send(t, model.EventToggle) // inspection -> running
	h.clock.advance(12000)
	h.send(t, model.EventToggle) // running -> stopped

	a := h.waitAttempt(t)
	if a.ID == "" {
		t.Error("expected a generated attempt ID")
	}
	if a.Scramble != "R U R' U'" {
		t.Errorf("expected scramble attached, got %q", a.Scramble)
	}
	if a.Result.RawMS != 12000 {
		t.Errorf("expected raw 12000, got %d", a.Result.RawMS)
	}
	if a.Result.InspectionMS != 3000 {
		t.Errorf("expected inspection 3000, got %d", a.Result.InspectionMS)
	}
	if a.Result.Penalty != penalty.None {
		t.Errorf("expected no penalty, got %v", a.Result.Penalty)
	}
	if a.Result.FinalMS == nil || *a.Result.FinalMS != 12000 {
		t.Errorf("expected final 12000, got %v", a.Result.FinalMS)
	}
}

func TestDispatcherHoldToStart(t *testing.T) {
	h := newHarness(t, 0, 300)

	// A short tap must not start the timer.
	h.send(t, model.EventPress)
	h.clock.advance(100)
	h.send(t, model.EventRelease)

	// A held press starts it; with inspection disabled the solve is
	// immediately running, so a press stops it without waiting for the
	// release.
	h.send(t, model.EventPress)
	h.clock.advance(400)
	h.send(t, model.EventRelease)
	h.clock.advance(9000)
	h.send(t, model.EventPress) // stops immediately
	h.send(t, model.EventRelease)

	a := h.waitAttempt(t)
	if a.Result.RawMS != 9000 {
		t.Errorf("expected raw 9000, got %d", a.Result.RawMS)
	}

	// Only one attempt may have been recorded.
	select {
	case extra := <-h.store.appended:
		t.Errorf("unexpected extra attempt %q", extra.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherInspectionTimeout(t *testing.T) {
	h := newHarness(t, 15000, 0)

	h.send(t, model.EventToggle) // idle -> inspection
	h.clock.advance(17001)       // past the point of no return

	a := h.waitAttempt(t)
	if a.Result.Penalty != penalty.DNF {
		t.Errorf("expected DNF, got %v", a.Result.Penalty)
	}
	if a.Result.FinalMS != nil {
		t.Errorf("expected nil final duration, got %v", a.Result.FinalMS)
	}
}
