// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/klepsydra/internal/adapters/importer"
	"github.com/okian/klepsydra/internal/adapters/mq/dispatcher"
	eventqueue "github.com/okian/klepsydra/internal/adapters/mq/queue"
	"github.com/okian/klepsydra/internal/adapters/persistence"
	"github.com/okian/klepsydra/internal/adapters/repository"
	"github.com/okian/klepsydra/internal/domain/dedupe"
	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/scramble"
	"github.com/okian/klepsydra/internal/domain/splits"
	"github.com/okian/klepsydra/internal/domain/stats"
	"github.com/okian/klepsydra/internal/domain/timer"
	"github.com/okian/klepsydra/pkg/logger"
	"github.com/okian/klepsydra/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultInspectionMS  = 15_000
	defaultHoldToStartMS = 300
	defaultQueueSize     = 4096
	defaultDedupeSize    = 50_000
)

// Service implements the API dependencies for the practice timer.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	dispatcher *dispatcher.Dispatcher
	scrambler  scramble.Provider
	engine     *stats.Engine
	clock      timer.Clock

	// Cached aggregates, recomputed after every history change.
	statsMu  sync.RWMutex
	trailing stats.Trailing
	bests    []stats.PersonalBest

	// Split tracking state.
	splitsMu    sync.Mutex
	definitions []splits.PhaseDefinition
	captures    map[string]*splits.Capture

	// Configuration
	inspectionMS         int64
	holdToStartMS        int64
	queueSize            int
	dedupeSize           int
	averageWindows       []int
	meanOfAverageWindows []int

	// State
	started        bool
	stopCh         chan struct{}
	dispatchCancel context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithInspectionMS sets the inspection countdown; 0 disables inspection.
func WithInspectionMS(ms int64) Option {
	return func(s *Service) {
		if ms >= 0 {
			s.inspectionMS = ms
		}
	}
}

// WithHoldToStartMS sets the minimum hold duration before a release starts the timer.
func WithHoldToStartMS(ms int64) Option {
	return func(s *Service) {
		if ms >= 0 {
			s.holdToStartMS = ms
		}
	}
}

// WithQueueSize sets the maximum size of the input event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithAverageWindows sets the trimmed-mean window sizes.
func WithAverageWindows(sizes []int) Option {
	return func(s *Service) {
		if len(sizes) > 0 {
			s.averageWindows = sizes
		}
	}
}

// WithMeanOfAverageWindows sets the mean-of-averages X values.
func WithMeanOfAverageWindows(sizes []int) Option {
	return func(s *Service) {
		if len(sizes) > 0 {
			s.meanOfAverageWindows = sizes
		}
	}
}

// WithStore sets the history store; defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the clock used by the timer state machine.
func WithClock(clock timer.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithScrambleProvider sets the scramble generator.
func WithScrambleProvider(p scramble.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.scrambler = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		inspectionMS:  defaultInspectionMS,
		holdToStartMS: defaultHoldToStartMS,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		captures:      make(map[string]*splits.Capture),
		stopCh:        make(chan struct{}),
		logger:        nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting timer service...")

	// Initialize components
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory history store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	if s.scrambler == nil {
		s.scrambler = scramble.NewRandomMoveProvider(
			scramble.WithSeed(time.Now().UnixNano()),
		)
	}
	if s.clock == nil {
		s.clock = timer.NewMonotonicClock()
	}

	engineOpts := []stats.Option{}
	if len(s.averageWindows) > 0 {
		engineOpts = append(engineOpts, stats.WithAverageSizes(s.averageWindows))
	}
	if len(s.meanOfAverageWindows) > 0 {
		engineOpts = append(engineOpts, stats.WithMeanOfAverageSizes(s.meanOfAverageWindows))
	}
	s.engine = stats.NewEngine(engineOpts...)

	// The dispatcher goroutine is the single writer of timer state and
	// the history.
	machine := timer.NewMachine(s.clock, timer.WithInspectionLimit(s.inspectionMS))
	gate := timer.NewHoldGate(s.clock, s.holdToStartMS)
	s.dispatcher = dispatcher.New(s.eventQueue, machine, gate, s.store,
		dispatcher.WithScrambler(s.scrambler),
		dispatcher.WithOnAppend(func(ctx context.Context, _ model.Attempt) {
			s.recompute(ctx)
		}),
	)

	dispatchCtx, cancel := context.WithCancel(context.Background())
	s.dispatchCancel = cancel
	go s.dispatcher.Run(dispatchCtx)

	// Seed the aggregate caches from whatever the store already holds.
	s.recompute(ctx)

	s.started = true
	s.logger.Info(ctx, "timer service started",
		logger.Int64("inspectionMS", s.inspectionMS),
		logger.Int64("holdToStartMS", s.holdToStartMS),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping timer service...")

	// Close queue first so the dispatcher can drain what is buffered.
	if q, ok := s.eventQueue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "dispatcher shutdown", logger.Error(err))
		}
	}
	if s.dispatchCancel != nil {
		s.dispatchCancel()
	}

	// Close the history store
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	// Signal cleanup loop to stop
	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "timer service stopped")
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
// Returns true if the event was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a raw input event for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, e model.InputEvent) bool {
	s.logger.Debug(ctx, "received input event",
		logger.String("eventID", e.EventID),
		logger.String("kind", e.Kind.String()),
		logger.Int64("at", e.At),
	)
	return s.eventQueue.Enqueue(ctx, e)
}

// Attempts returns the chronological history page.
func (s *Service) Attempts(ctx context.Context, offset, limit int) ([]model.Attempt, error) {
	return s.store.List(ctx, offset, limit)
}

// Attempt returns one attempt by ID.
func (s *Service) Attempt(ctx context.Context, id string) (model.Attempt, error) {
	return s.store.Get(ctx, id)
}

// ApplyPenalty rewrites the manual penalty of a stored attempt and
// recomputes every aggregate that the edit may have shifted.
func (s *Service) ApplyPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error) {
	a, err := s.store.SetPenalty(ctx, id, p)
	if err != nil {
		return model.Attempt{}, err
	}
	metrics.RecordPenaltyEdit(a.Result.Penalty.String())
	s.recompute(ctx)
	return a, nil
}

// Trailing returns the cached trailing aggregates.
func (s *Service) Trailing(_ context.Context) stats.Trailing {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.trailing
}

// PersonalBests returns the cached personal bests.
func (s *Service) PersonalBests(_ context.Context) []stats.PersonalBest {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	out := make([]stats.PersonalBest, len(s.bests))
	copy(out, s.bests)
	return out
}

// recompute rebuilds the trailing aggregates and personal bests from
// the full history.
func (s *Service) recompute(ctx context.Context) {
	start := time.Now()

	attempts, err := s.store.List(ctx, 0, 0)
	if err != nil {
		s.logger.Error(ctx, "failed to list history for recompute", logger.Error(err))
		return
	}
	samples := model.Samples(attempts)

	trailing := s.engine.Trailing(samples)
	bests := s.engine.PersonalBests(samples)

	s.statsMu.Lock()
	prev := make(map[string]int64, len(s.bests))
	for _, b := range s.bests {
		prev[b.Category] = b.ValueMS
	}
	for _, b := range bests {
		if old, ok := prev[b.Category]; !ok || b.ValueMS < old {
			metrics.RecordPBImprovement(b.Category)
		}
	}
	s.trailing = trailing
	s.bests = bests
	s.statsMu.Unlock()

	metrics.UpdateHistorySize(len(attempts))
	metrics.RecordStatsRecomputeLatency(float64(time.Since(start).Microseconds()) / 1000.0)
}

// SetSplitDefinitions normalizes and replaces the phase definitions.
func (s *Service) SetSplitDefinitions(_ context.Context, defs []splits.PhaseDefinition) ([]splits.PhaseDefinition, error) {
	normalized, err := splits.NormalizeDefinitions(defs)
	if err != nil {
		return nil, err
	}
	s.splitsMu.Lock()
	s.definitions = normalized
	s.splitsMu.Unlock()
	return normalized, nil
}

// RecordSplits appends phase marks to an attempt's capture. Marks for
// an already-captured phase replace it only when the timestamp does not
// go backwards.
func (s *Service) RecordSplits(ctx context.Context, attemptID string, marks []splits.Mark) error {
	if _, err := s.store.Get(ctx, attemptID); err != nil {
		return err
	}

	s.splitsMu.Lock()
	defer s.splitsMu.Unlock()

	c, ok := s.captures[attemptID]
	if !ok {
		c = splits.NewCapture(attemptID)
		s.captures[attemptID] = c
	}
	for _, m := range marks {
		c.Record(m.Phase, m.TS)
	}
	return nil
}

// SplitReport reduces an attempt's capture against the current phase
// definitions.
func (s *Service) SplitReport(ctx context.Context, attemptID string) (splits.Report, error) {
	a, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return splits.Report{}, err
	}

	s.splitsMu.Lock()
	defer s.splitsMu.Unlock()

	c, ok := s.captures[attemptID]
	if !ok {
		c = splits.NewCapture(attemptID)
	}
	return splits.Report{
		AttemptID: attemptID,
		Durations: splits.Reduce(s.definitions, c, a.Result.RawMS),
		Issues:    splits.Validate(s.definitions, c),
	}, nil
}

// ImportSession parses a session export and appends its solves to the
// history. Re-importing the same file is a no-op thanks to per-solve
// fingerprints in the dedupe cache.
func (s *Service) ImportSession(ctx context.Context, data []byte) (int, error) {
	entries, err := importer.Parse(data)
	if err != nil {
		metrics.RecordImportError()
		return 0, err
	}

	// Keep the history chronological regardless of export ordering.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt < entries[j].RecordedAt
	})

	count := 0
	for _, e := range entries {
		if s.deduper.SeenAndRecord(ctx, e.Fingerprint()) {
			metrics.RecordEventDuplicate()
			continue
		}
		a := e.Attempt(uuid.NewString())
		if err := s.store.Append(ctx, a); err != nil {
			if errors.Is(err, repository.ErrDuplicateAttempt) {
				continue
			}
			metrics.RecordImportError()
			return count, fmt.Errorf("import solve: %w", err)
		}
		metrics.RecordAttemptCompleted()
		if a.Result.FinalMS == nil {
			metrics.RecordAttemptDNF()
		}
		count++
	}

	if count > 0 {
		s.recompute(ctx)
	}
	s.logger.Info(ctx, "session import finished",
		logger.Int("parsed", len(entries)),
		logger.Int("imported", count),
	)
	return count, nil
}

// SaveSnapshot writes the full history and settings to path.
func (s *Service) SaveSnapshot(ctx context.Context, path string) error {
	attempts, err := s.store.List(ctx, 0, 0)
	if err != nil {
		return err
	}
	settings := persistence.Settings{
		InspectionMS:         s.inspectionMS,
		HoldToStartMS:        s.holdToStartMS,
		AverageWindows:       s.averageWindows,
		MeanOfAverageWindows: s.meanOfAverageWindows,
	}
	if err := persistence.Save(path, settings, attempts); err != nil {
		return err
	}
	s.logger.Info(ctx, "snapshot saved",
		logger.String("path", path),
		logger.Int("attempts", len(attempts)),
	)
	return nil
}

// LoadSnapshot restores history from a snapshot document, skipping
// attempts already present.
func (s *Service) LoadSnapshot(ctx context.Context, path string) (int, error) {
	doc, err := persistence.Load(path)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range doc.Attempts {
		if err := s.store.Append(ctx, a); err != nil {
			if errors.Is(err, repository.ErrDuplicateAttempt) {
				continue
			}
			return count, fmt.Errorf("restore attempt: %w", err)
		}
		count++
	}
	if count > 0 {
		s.recompute(ctx)
	}
	s.logger.Info(ctx, "snapshot loaded",
		logger.String("path", path),
		logger.Int("restored", count),
	)
	return count, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]interface{}{
		"started":       s.started,
		"inspectionMS":  s.inspectionMS,
		"holdToStartMS": s.holdToStartMS,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		historySize := s.store.Count(ctx)

		out["queueLength"] = queueLen
		out["attempts"] = historySize

		s.statsMu.RLock()
		out["personalBests"] = len(s.bests)
		s.statsMu.RUnlock()

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateHistorySize(historySize)
	}

	return out
}
