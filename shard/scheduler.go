package shard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/resource"
)

// Scheduler drives migrations in the background: it executes enqueued
// plans, bounds migration concurrency through the resource controller,
// and periodically sweeps for suspended or stale migrations to resume.
type Scheduler struct {
	manager   *Manager
	resources *resource.Controller
	interval  time.Duration
	logger    *slog.Logger

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerResources sets the controller whose migration slots bound
// how many migrations run at once. Defaults to a controller allowing two.
func WithSchedulerResources(rc *resource.Controller) SchedulerOption {
	return func(s *Scheduler) {
		if rc != nil {
			s.resources = rc
		}
	}
}

// WithSweepInterval sets how often the scheduler looks for suspended or
// stale migrations. Defaults to 5s.
func WithSweepInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger sets the structured logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a Scheduler for the given Manager.
// Call Start to begin processing and Close to shut down.
func NewScheduler(m *Manager, optFns ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		manager:   m,
		resources: resource.NewController(resource.Config{}),
		interval:  5 * time.Second,
		logger:    slog.New(slog.DiscardHandler),
		queue:     make(chan string, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(s)
		}
	}
	return s
}

// Start launches the dispatch and sweep loops.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.dispatch()
	go s.sweep()
}

// Enqueue registers a plan and queues it for execution.
// Returns immediately; execution happens in the background.
func (s *Scheduler) Enqueue(plan *MigrationPlan) error {
	if _, err := s.manager.RegisterMigration(plan); err != nil {
		return err
	}
	s.submit(plan.ID)
	return nil
}

func (s *Scheduler) submit(migrationID string) {
	select {
	case s.queue <- migrationID:
	case <-s.ctx.Done():
	default:
		// Queue full: the sweep will pick the migration up again.
	}
}

func (s *Scheduler) dispatch() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case id := <-s.queue:
			if err := s.resources.AcquireMigration(s.ctx); err != nil {
				return
			}
			s.wg.Add(1)
			go func(id string) {
				defer s.wg.Done()
				defer s.resources.ReleaseMigration()

				if err := s.manager.ResumeMigration(s.ctx, id); err != nil && err != ErrUnknownMigration {
					s.logger.Warn("migration run failed", "migration", id, "error", err)
				}
			}(id)
		}
	}
}

// sweep re-queues suspended and stale migrations so recovery does not
// depend on the original caller.
func (s *Scheduler) sweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.manager.Resumable() {
				s.submit(id)
			}
		}
	}
}

// Close stops the scheduler and waits for in-flight migrations to park.
// Interrupted migrations remain registered and resumable.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}
