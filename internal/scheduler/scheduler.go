package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/metrics"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	// ErrBusy is returned when a task is triggered while it is still running.
	ErrBusy = errors.New("task already running")
)

// Func is one invocation of a task. It must not hold on to ctx after return.
// A returned error is logged for scheduled ticks and handed back by Trigger.
type Func func(ctx context.Context) error

type task struct {
	name     string
	spec     string
	schedule cron.Schedule
	run      Func

	// held for the whole invocation; a task never overlaps itself
	mu sync.Mutex
}

// Scheduler runs each task on its cron schedule in its own goroutine.
// Invocations of the same task are serialised across scheduled ticks and
// manual triggers: a tick that finds the task still running is skipped.
type Scheduler struct {
	Logger *zap.Logger
	clock  clockwork.Clock
	loc    *time.Location

	mu    sync.RWMutex
	tasks map[string]*task
}

// New returns a Scheduler evaluating schedules in loc (time.Local when nil).
func New(logger *zap.Logger, clock clockwork.Clock, loc *time.Location) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		Logger: logger,
		clock:  clock,
		loc:    loc,
		tasks:  map[string]*task{},
	}
}

// ParseSpec parses a standard five-field cron expression (or a descriptor
// like @daily) in loc.
func ParseSpec(spec string, loc *time.Location) (cron.Schedule, error) {
	full := spec
	if loc != nil {
		full = "CRON_TZ=" + loc.String() + " " + spec
	}
	s, err := cron.ParseStandard(full)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", spec, err)
	}
	return s, nil
}

// Add registers a task. It must be called before Run.
func (s *Scheduler) Add(name, spec string, run Func) error {
	sched, err := ParseSpec(spec, s.loc)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[name]; dup {
		return fmt.Errorf("task %s already registered", name)
	}
	s.tasks[name] = &task{name: name, spec: spec, schedule: sched, run: run}
	return nil
}

func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tasks))
	for n := range s.tasks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Next returns the next scheduled time of a task.
func (s *Scheduler) Next(name string) (time.Time, error) {
	t, err := s.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	return t.schedule.Next(s.clock.Now()), nil
}

// Run blocks until ctx is cancelled and every task loop has returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	s.Logger.Info("scheduler_started", zap.Int("tasks", len(tasks)))
	wg.Wait()
	s.Logger.Info("scheduler_stopped")
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	for {
		now := s.clock.Now()
		next := t.schedule.Next(now)
		if next.IsZero() {
			s.Logger.Warn("task_never_fires", zap.String("task", t.name), zap.String("spec", t.spec))
			return
		}
		s.Logger.Debug("task_scheduled", zap.String("task", t.name), zap.Time("next", next))

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		switch err := s.invoke(ctx, t); {
		case err == nil:
		case errors.Is(err, ErrBusy):
			s.Logger.Warn("task_skipped_busy", zap.String("task", t.name))
		default:
			s.Logger.Error("task_failed", zap.String("task", t.name), zap.Error(err))
		}
	}
}

// Trigger runs a task now, in the caller's goroutine, unless it is already
// running.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.invoke(ctx, t)
}

func (s *Scheduler) lookup(name string) (*task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t, nil
}

func (s *Scheduler) invoke(ctx context.Context, t *task) (err error) {
	if !t.mu.TryLock() {
		return ErrBusy
	}
	defer t.mu.Unlock()

	start := s.clock.Now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(t.name).Observe(s.clock.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.TaskPanics.WithLabelValues(t.name).Inc()
			s.Logger.Error("task_panic", zap.String("task", t.name), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
	}()
	return t.run(ctx)
}
