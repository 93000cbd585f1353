// Package refresh periodically reloads the plan catalog and subscription
// registry from the backend.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Loader reloads state from the backend.
type Loader interface {
	Load(ctx context.Context) error
}

// Observer records the outcome of each refresh.
type Observer interface {
	ObserveRefresh(err error)
}

// Config holds configuration for the refresh scheduler.
type Config struct {
	// Schedule is a cron expression (five or six fields) or a descriptor
	// such as "@every 5m".
	Schedule string
	// Timeout bounds a single reload.
	Timeout time.Duration
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Schedule: "@every 5m",
		Timeout:  30 * time.Second,
	}
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a schedule expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Scheduler runs the loader on a cron schedule. Runs never overlap; a tick
// that fires while a reload is still in progress is skipped.
type Scheduler struct {
	loader   Loader
	config   Config
	logger   zerolog.Logger
	observer Observer
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	lastRun time.Time
	lastErr error
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(loader Loader, config Config, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "refresh_scheduler").Logger()
	cl := cronLogger{logger: logger}
	return &Scheduler{
		loader: loader,
		config: config,
		logger: logger,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// SetObserver sets the refresh outcome observer.
func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

// Start registers the schedule and starts the cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.config.Schedule == "" {
		return errors.New("refresh schedule is empty")
	}

	sched, err := ParseSchedule(s.config.Schedule)
	if err != nil {
		return err
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(s.tick))
	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", s.config.Schedule).Msg("refresh scheduler started")
	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// reload has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.cron.Remove(s.entry)
	s.logger.Info().Msg("stopping refresh scheduler")
	return s.cron.Stop()
}

// NextRun returns the next scheduled reload, or the zero time if the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// LastRun returns when the last reload finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	_ = s.RunNow(ctx)
}

// RunNow reloads immediately and records the outcome.
func (s *Scheduler) RunNow(ctx context.Context) error {
	start := time.Now()
	err := s.loader.Load(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveRefresh(err)
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled refresh failed")
		return err
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("refresh completed")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
