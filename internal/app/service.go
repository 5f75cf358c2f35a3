// Package service is the league state container. It reflects the confirmed
// backend state, recomputes every derived view when that state changes and
// exposes one mutation per admin action.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/klapi/internal/adapters/mq/queue"
	"github.com/okian/klapi/internal/adapters/mq/worker"
	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/domain/dedupe"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/pkg/logger"
	"github.com/okian/klapi/pkg/metrics"
)

const (
	defaultQueueSize       = 1024
	defaultIdempotencySize = 4096
	defaultIdempotencyTTL  = 24 * time.Hour
	stopTimeout            = 5 * time.Second
)

// Service owns the confirmed league state and its derived View.
type Service struct {
	// mu guards state and revs; it is held while a change is folded in and
	// the view rebuilt.
	mu    sync.Mutex
	state model.State
	revs  map[model.Collection]uint64
	view  atomic.Pointer[View]

	// mutMu serializes admin mutations so lookups and writes see one state.
	mutMu sync.Mutex

	store   repository.Store
	queue   *eventqueue.InMemoryQueue
	worker  *worker.InMemoryWorker
	deduper dedupe.Deduper

	queueSize       int
	idempotencySize int
	idempotencyTTL  time.Duration

	clock func() time.Time
	loc   *time.Location
	newID func() string

	started     atomic.Bool
	unsubscribe func()
	resync      chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger logger.Logger
}

var _ worker.Applier = (*Service)(nil)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the league's local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithQueueSize bounds buffered backend notifications.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotency configures the Idempotency-Key cache.
func WithIdempotency(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.idempotencySize = size
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithIDGenerator overrides how event and post ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a Service over store. Call Start before use.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		revs:            make(map[model.Collection]uint64),
		queueSize:       defaultQueueSize,
		idempotencySize: defaultIdempotencySize,
		idempotencyTTL:  defaultIdempotencyTTL,
		clock:           time.Now,
		loc:             time.Local,
		newID:           uuid.NewString,
		resync:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("league")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.idempotencySize),
		dedupe.WithTTL(s.idempotencyTTL),
		dedupe.WithClock(s.clock),
	)
	s.view.Store(buildView(model.State{}, nil, s.now()))
	return s
}

func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

// Start subscribes to backend notifications, starts the dispatcher and loads
// the initial state.
func (s *Service) Start(ctx context.Context) error {
	if s.started.Load() {
		return nil
	}
	s.logger.Info(ctx, "starting league service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s, worker.WithLogger(s.logger.Named("dispatcher")))

	// Subscribe before loading so nothing written in between is missed.
	s.unsubscribe = s.store.Subscribe(func(c repository.Change) {
		if !s.queue.Enqueue(runCtx, c) {
			s.logger.Warn(runCtx, "notification dropped, scheduling reload")
			s.scheduleResync()
		}
	})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.worker.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.resyncLoop(runCtx)
	}()

	if err := s.Reload(ctx); err != nil {
		s.shutdown(ctx)
		return err
	}
	s.started.Store(true)

	v := s.View()
	s.logger.Info(ctx, "league service started",
		logger.Int("players", len(v.State.Players)),
		logger.Int("played", len(v.Played)),
		logger.Int("planned", len(v.Planned)),
	)
	return nil
}

// Stop detaches from the backend, drains the dispatcher and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info(ctx, "stopping league service...")
	s.shutdown(ctx)
	err := s.store.Close()
	s.logger.Info(ctx, "league service stopped")
	return err
}

func (s *Service) shutdown(ctx context.Context) {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.worker != nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		if err := s.worker.Shutdown(stopCtx); err != nil {
			s.logger.Warn(ctx, "dispatcher did not stop in time", logger.Error(err))
		}
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) scheduleResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

func (s *Service) resyncLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.resync:
			if err := s.Reload(ctx); err != nil {
				s.logger.Error(ctx, "reload after dropped notification failed", logger.Error(err))
				metrics.RecordError("league", "resync")
			}
		}
	}
}

// Reload pulls every collection from the backend and applies it.
func (s *Service) Reload(ctx context.Context) error {
	c, err := s.store.Load(ctx)
	if err != nil {
		metrics.RecordError("league", "load")
		return err
	}
	s.apply(ctx, c)
	return nil
}

// Apply folds a backend notification into the state. It implements
// worker.Applier for the dispatcher.
func (s *Service) Apply(ctx context.Context, c repository.Change) error {
	s.apply(ctx, c)
	return nil
}

// apply replaces every collection of c whose revision is not older than the
// last one applied, then rebuilds the view. It reports whether anything was
// applied.
func (s *Service) apply(ctx context.Context, c repository.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := make([]model.Collection, 0, len(c.Revisions))
	for _, col := range c.Collections() {
		rev := c.Revisions[col]
		if last, ok := s.revs[col]; ok && rev < last {
			metrics.RecordNotification(string(col), metrics.OutcomeStale)
			s.logger.Debug(ctx, "discarding stale notification",
				logger.String("collection", string(col)),
				logger.Uint64("revision", rev),
				logger.Uint64("applied", last),
			)
			continue
		}
		s.revs[col] = rev
		accepted = append(accepted, col)
		metrics.RecordNotification(string(col), metrics.OutcomeApplied)
	}
	if len(accepted) == 0 {
		return false
	}

	s.state.Replace(c.State.Clone(), accepted...)

	start := time.Now()
	v := buildView(s.state, s.revs, s.now())
	metrics.ObserveRecompute(time.Since(start).Seconds())
	metrics.UpdateLeagueSize(len(v.State.Players), len(v.Planned), len(v.Played))
	s.view.Store(v)
	return true
}

// View returns the current derived view. It must not be modified.
func (s *Service) View() *View {
	return s.view.Load()
}

// Now returns the current time in the league's zone.
func (s *Service) Now() time.Time {
	return s.now()
}

// Idempotency exposes the Idempotency-Key cache used by the admin API.
func (s *Service) Idempotency() dedupe.Deduper {
	return s.deduper
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	v := s.View()
	stats := map[string]any{
		"started":         s.started.Load(),
		"players":         len(v.State.Players),
		"plannedEvents":   len(v.Planned),
		"playedEvents":    len(v.Played),
		"posts":           len(v.State.Posts),
		"logs":            len(v.State.Logs),
		"revisions":       v.Revisions,
		"computedAt":      v.ComputedAt,
		"idempotencyKeys": s.deduper.Size(),
	}
	if s.queue != nil {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
