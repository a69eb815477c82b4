// Package scheduler owns the polling loop: it keeps today's plan loaded,
// dispatches due actions and persists what fired.
//
// A single goroutine (Run) owns the plan and its ledger. Plan reload signals
// arrive on a channel and are applied between ticks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ontime/internal/config"
	"ontime/internal/event"
	"ontime/internal/executor"
	"ontime/internal/history"
	"ontime/internal/plan"
	logx "ontime/pkg/logx"
)

const dateLayout = "2006-01-02"

// loopLogEvery limits repeated LOOP failure logs per event.
const loopLogEvery = 10 * time.Minute

// PlanLoader builds the plan for a calendar day.
type PlanLoader interface {
	Load(date time.Time) (*plan.Plan, error)
}

// Runner executes one command.
type Runner interface {
	Run(ctx context.Context, command string) (executor.Result, error)
}

// Notifier receives service state changes (systemd).
type Notifier interface {
	Ready()
	Watchdog()
}

type Option func(*Scheduler)

func WithHistory(st history.Store) Option   { return func(s *Scheduler) { s.history = st } }
func WithNotifier(n Notifier) Option        { return func(s *Scheduler) { s.notifier = n } }
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithReload makes Run rebuild the current plan whenever ch fires.
func WithReload(ch <-chan struct{}) Option { return func(s *Scheduler) { s.reload = ch } }

// WithWatchdog pings the notifier every d in addition to once per tick.
func WithWatchdog(d time.Duration) Option { return func(s *Scheduler) { s.watchdog = d } }

type Scheduler struct {
	opts   config.Options
	tol    event.Tolerance
	loader PlanLoader
	runner Runner
	log    logx.Logger

	history  history.Store
	notifier Notifier
	now      func() time.Time
	reload   <-chan struct{}
	watchdog time.Duration

	plan  *plan.Plan
	ready bool

	// per-checksum limiters for LOOP failure logs; reset with the plan
	loopLogs map[string]*rate.Limiter

	// Edges (by event index) whose last attempt failed under do-not-write.
	// They are written as not done until a later attempt succeeds.
	failed map[int]event.Executed
}

func New(opts config.Options, loader PlanLoader, runner Runner, log logx.Logger, fns ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		opts:     opts,
		tol:      opts.Tolerance(),
		loader:   loader,
		runner:   runner,
		log:      log.With(logx.String("comp", "scheduler")),
		now:      time.Now,
		loopLogs: map[string]*rate.Limiter{},
	}
	for _, fn := range fns {
		if fn != nil {
			fn(s)
		}
	}
	return s
}

// Plan returns the plan currently loaded, nil before the first tick.
func (s *Scheduler) Plan() *plan.Plan { return s.plan }

// Run ticks on the configured schedule until ctx is cancelled. Plan load and
// ledger write failures end the loop with an error.
func (s *Scheduler) Run(ctx context.Context) error {
	sched, err := config.ParseTick(s.opts.Tick)
	if err != nil {
		return err
	}

	if err := s.Tick(ctx, s.now()); err != nil {
		return err
	}

	var watchdog <-chan time.Time
	if s.watchdog > 0 && s.notifier != nil {
		t := time.NewTicker(s.watchdog)
		defer t.Stop()
		watchdog = t.C
	}

	// The tick deadline only moves when the timer fires; reload and watchdog
	// wakeups leave it alone.
	nextWait := func() time.Duration {
		now := s.now()
		return max(sched.Next(now).Sub(now), 0)
	}
	timer := time.NewTimer(nextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-s.reload:
			s.Reload(s.now())
		case <-watchdog:
			s.notifier.Watchdog()
		case <-timer.C:
			if err := s.Tick(ctx, s.now()); err != nil {
				return err
			}
			timer.Reset(nextWait())
		}
	}
}

// Tick runs one poll at now. A new calendar day (or no plan yet) loads a
// fresh plan first. The returned error is fatal.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if s.plan == nil || s.plan.Date.Format(dateLayout) != now.Format(dateLayout) {
		if err := s.load(now); err != nil {
			return err
		}
	}

	p := s.plan
	changed := false
	for i := range p.Events {
		if ctx.Err() != nil {
			break
		}
		e := &p.Events[i]
		action := event.Decide(e, now, s.tol)
		if action == event.ActionNone {
			continue
		}
		changed = true

		before := e.Executed
		switch action {
		case event.ActionStart:
			e.Executed.StartDone = true
		case event.ActionEnd:
			e.Executed.EndDone = true
		}

		err := s.dispatch(ctx, now, e, action)
		if action == event.ActionLoop {
			continue
		}
		if err == nil {
			s.markFailed(i, action, false)
			continue
		}
		var ee *executor.ExecutionError
		if s.opts.Retry() && errors.As(err, &ee) {
			e.Executed = before
		}
		if s.opts.DoNotWrite() {
			s.markFailed(i, action, true)
		}
	}

	if changed {
		if err := p.PersistExcept(s.failed); err != nil {
			return fmt.Errorf("persist ledger: %w", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Watchdog()
	}
	return nil
}

// Reload rebuilds today's plan from disk. Failures keep the current plan.
func (s *Scheduler) Reload(now time.Time) {
	if s.plan == nil {
		return
	}
	p, err := s.loader.Load(now)
	if err != nil {
		s.log.Warn("plan reload failed; keeping current plan", logx.Err(err))
		return
	}
	s.install(p)
	s.log.Info("plan reloaded", logx.String("weekday", p.Weekday), logx.Int("events", len(p.Events)))
}

func (s *Scheduler) load(now time.Time) error {
	p, err := s.loader.Load(now)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if prev := s.plan; prev != nil {
		for _, e := range prev.InFlight() {
			s.log.Warn("event still running at day change; end action dropped",
				logx.String("weekday", prev.Weekday),
				logx.String("checksum", e.Checksum),
				logx.String("execute_end", e.EndScript),
			)
		}
	}
	s.install(p)
	s.log.Info("plan loaded", logx.String("weekday", p.Weekday), logx.String("file", p.File), logx.Int("events", len(p.Events)))

	if !s.ready {
		s.ready = true
		if s.notifier != nil {
			s.notifier.Ready()
		}
	}
	return nil
}

func (s *Scheduler) install(p *plan.Plan) {
	s.plan = p
	s.loopLogs = map[string]*rate.Limiter{}
	s.failed = nil
}

// markFailed records (or clears, on success) a failed edge of event i.
func (s *Scheduler) markFailed(i int, action event.Action, failed bool) {
	f, ok := s.failed[i]
	if !ok && !failed {
		return
	}
	switch action {
	case event.ActionStart:
		f.StartDone = failed
	case event.ActionEnd:
		f.EndDone = failed
	}
	if !f.StartDone && !f.EndDone {
		delete(s.failed, i)
		return
	}
	if s.failed == nil {
		s.failed = map[int]event.Executed{}
	}
	s.failed[i] = f
}

func (s *Scheduler) dispatch(ctx context.Context, now time.Time, e *event.Event, action event.Action) error {
	cmd := e.Script(action)
	log := s.log.With(
		logx.String("action", action.String()),
		logx.String("checksum", e.Checksum),
		logx.String("cmd", cmd),
	)
	log.Debug("dispatching")

	res, err := s.runner.Run(ctx, cmd)
	s.record(ctx, now, e, action, cmd, res, err)
	if err == nil {
		log.Info("action done", logx.Duration("took", res.Took))
		return nil
	}

	if action == event.ActionLoop {
		if s.loopLimiter(e.Checksum).Allow() {
			log.Warn("during action failed", logx.Int("code", res.Code), logx.Err(err))
		}
		return err
	}

	var ee *executor.ExecutionError
	retry := errors.As(err, &ee) && s.opts.Retry()
	log.Error("action failed", logx.Int("code", res.Code), logx.Bool("retry", retry), logx.Err(err))
	return err
}

func (s *Scheduler) loopLimiter(checksum string) *rate.Limiter {
	l, ok := s.loopLogs[checksum]
	if !ok {
		l = rate.NewLimiter(rate.Every(loopLogEvery), 1)
		s.loopLogs[checksum] = l
	}
	return l
}

func (s *Scheduler) record(ctx context.Context, now time.Time, e *event.Event, action event.Action, cmd string, res executor.Result, runErr error) {
	if s.history == nil {
		return
	}
	r := history.Run{
		At:       now,
		Weekday:  s.plan.Weekday,
		Checksum: e.Checksum,
		Action:   action.String(),
		Command:  cmd,
		Code:     res.Code,
		OK:       runErr == nil,
		TookMS:   res.Took.Milliseconds(),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	// Record even when shutdown cancelled ctx mid-run.
	if err := s.history.Record(context.WithoutCancel(ctx), r); err != nil {
		s.log.Warn("history record failed", logx.Err(err))
	}
}
