// Package schedule provides an interval and cron task scheduler.
//
// Usage:
//
//	s := schedule.New()
//	s.Every(1).Minutes().Name("offers:sync").WithoutOverlapping().Run(syncOffers)
//	s.Cron("*/5 * * * *").Run(report)
//
//	// Dispatch in the background until ctx is cancelled:
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/offersync/pkg/logger"
)

// Task is the function signature for a scheduled task. ctx is cancelled
// when the scheduler stops.
type Task func(ctx context.Context)

// entry represents a single scheduled job.
type entry struct {
	id         string
	interval   time.Duration
	cronExpr   string // "" unless using Cron()
	task       Task
	lastRun    time.Time
	running    bool // overlap guard
	noOverlap  bool
	beforeHook Task
	afterHook  Task
	mu         sync.Mutex
}

// Scheduler holds registered entries and dispatches them.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// New returns a scheduler that checks for due tasks every second.
func New() *Scheduler {
	return &Scheduler{tick: time.Second, now: time.Now}
}

// Builder is a fluent builder for a single entry before it is registered.
type Builder struct {
	s *Scheduler
	e *entry
}

// EveryMinute schedules the task to run every 60 seconds.
func (s *Scheduler) EveryMinute() *Builder { return s.Every(1).Minutes() }

// Every starts a fluent builder with n units.
func (s *Scheduler) Every(n int) *FreqBuilder { return &FreqBuilder{s: s, n: n} }

// Interval schedules the task every d.
func (s *Scheduler) Interval(d time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: d}}
}

// Cron schedules using a 5-field cron expression (min hour dom mon dow).
// The task runs at most once per matching minute.
func (s *Scheduler) Cron(expr string) *Builder {
	return &Builder{s: s, e: &entry{cronExpr: expr}}
}

// ------------------- Fluent frequency builder -------------------

type FreqBuilder struct {
	s *Scheduler
	n int
}

func (f *FreqBuilder) Seconds() *Builder { return f.s.Interval(time.Duration(f.n) * time.Second) }
func (f *FreqBuilder) Minutes() *Builder { return f.s.Interval(time.Duration(f.n) * time.Minute) }
func (f *FreqBuilder) Hours() *Builder   { return f.s.Interval(time.Duration(f.n) * time.Hour) }

// ------------------- Builder chainable options -------------------

// WithoutOverlapping prevents a new run if the previous one is still executing.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Before registers a hook that fires before the task.
func (b *Builder) Before(fn Task) *Builder {
	b.e.beforeHook = fn
	return b
}

// After registers a hook that fires after the task (always, even on panic).
func (b *Builder) After(fn Task) *Builder {
	b.e.afterHook = fn
	return b
}

// Name gives the entry a human-readable identifier for logging.
func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// Run registers the task. It returns an error for an invalid cron
// expression or a non-positive interval.
func (b *Builder) Run(fn Task) error {
	if b.e.cronExpr != "" {
		if err := validateCron(b.e.cronExpr); err != nil {
			return err
		}
	} else if b.e.interval <= 0 {
		return fmt.Errorf("schedule: interval must be positive, got %s", b.e.interval)
	}

	b.e.task = fn

	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
	return nil
}

// ------------------- Scheduler loop -------------------

// Start begins the scheduler loop in the background. Interval tasks run
// once immediately and then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	logger.Info("schedule: scheduler started", "tasks", len(s.List()))
}

// Wait blocks until the loop has stopped and every dispatched task has
// returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.dispatchDue(ctx, s.now())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: scheduler stopped")
			return
		case <-ticker.C:
			s.dispatchDue(ctx, s.now())
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	current := make([]*entry, len(s.entries))
	copy(current, s.entries)
	s.mu.Unlock()

	for _, e := range current {
		if isDue(e, now) {
			s.dispatch(ctx, e, now)
		}
	}
}

func isDue(e *entry, now time.Time) bool {
	e.mu.Lock()
	last := e.lastRun
	e.mu.Unlock()

	if e.cronExpr != "" {
		if !last.IsZero() && last.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
			return false
		}
		return matchCron(e.cronExpr, now)
	}
	if last.IsZero() {
		return true // first run
	}
	return now.Sub(last) >= e.interval
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			if e.afterHook != nil {
				e.afterHook(ctx)
			}
		}()

		if e.beforeHook != nil {
			e.beforeHook(ctx)
		}
		logger.Debug("schedule: running task", "id", e.id)
		e.task(ctx)
	}()
}

// ------------------- Minimal cron parser -------------------
// Supports 5-field cron: minute hour dom month dow
// Each field: * | number | */step | number-number | comma-separated list

var cronBounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

func validateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("schedule: cron %q: want 5 fields, got %d", expr, len(fields))
	}
	for i, f := range fields {
		for _, part := range strings.Split(f, ",") {
			if err := validatePart(part, cronBounds[i][0], cronBounds[i][1]); err != nil {
				return fmt.Errorf("schedule: cron %q field %d: %w", expr, i+1, err)
			}
		}
	}
	return nil
}

func validatePart(part string, lo, hi int) error {
	switch {
	case part == "*":
		return nil
	case strings.HasPrefix(part, "*/"):
		step, err := strconv.Atoi(part[2:])
		if err != nil || step <= 0 {
			return fmt.Errorf("bad step %q", part)
		}
		return nil
	case strings.Contains(part, "-"):
		a, b, ok := strings.Cut(part, "-")
		from, err1 := strconv.Atoi(a)
		to, err2 := strconv.Atoi(b)
		if !ok || err1 != nil || err2 != nil || from > to || from < lo || to > hi {
			return fmt.Errorf("bad range %q", part)
		}
		return nil
	default:
		n, err := strconv.Atoi(part)
		if err != nil || n < lo || n > hi {
			return fmt.Errorf("bad value %q", part)
		}
		return nil
	}
}

func matchCron(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	vals := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, f := range fields {
		if !matchField(f, vals[i]) {
			return false
		}
	}
	return true
}

func matchField(field string, val int) bool {
	for _, part := range strings.Split(field, ",") {
		if matchPart(part, val) {
			return true
		}
	}
	return false
}

func matchPart(part string, val int) bool {
	if part == "*" {
		return true
	}
	if strings.HasPrefix(part, "*/") {
		step, _ := strconv.Atoi(part[2:])
		return step > 0 && val%step == 0
	}
	if a, b, ok := strings.Cut(part, "-"); ok {
		lo, _ := strconv.Atoi(a)
		hi, _ := strconv.Atoi(b)
		return val >= lo && val <= hi
	}
	n, err := strconv.Atoi(part)
	return err == nil && n == val
}

// List returns all registered entries (for CLI display).
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		freq := e.cronExpr
		if freq == "" {
			freq = "every " + e.interval.String()
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}
