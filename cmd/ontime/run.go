package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"ontime/internal/config"
	"ontime/internal/dirs"
	"ontime/internal/executor"
	"ontime/internal/history"
	"ontime/internal/plan"
	"ontime/internal/runtime/supervisor"
	"ontime/internal/scheduler"
	"ontime/internal/sdnotify"
	logx "ontime/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func runDaemon(c *cli.Context) error {
	opts, err := options(c)
	if err != nil {
		return err
	}
	logs, log := logx.New(logConfig(opts))
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := dirs.NewResolver()
	loader := &plan.Loader{
		FS:       res.FS,
		Files:    res.PlanFiles,
		CacheDir: res.CacheDir(),
		Log:      log.With(logx.String("comp", "plan")),
	}

	store, err := openHistory(opts, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	notifier := sdnotify.New(log)
	fns := []scheduler.Option{
		scheduler.WithNotifier(notifier),
		scheduler.WithWatchdog(notifier.WatchdogInterval() / 2),
	}
	if store != nil {
		fns = append(fns, scheduler.WithHistory(store))
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(log), supervisor.WithCancelOnError(true))
	if opts.WatchEnabled() {
		w := plan.NewWatcher(res.PlanDir(), log.With(logx.String("comp", "watch")))
		fns = append(fns, scheduler.WithReload(w.C()))
		sup.Go("plan-watcher", w.Run)
	}
	sched := scheduler.New(opts, loader, executor.New(opts, log), log, fns...)
	sup.Go("scheduler", sched.Run)

	log.Info("ontime started",
		logx.String("plans", res.PlanDir()),
		logx.String("cache", loader.CacheDir),
		logx.String("tick", opts.Tick),
		logx.Bool("watch", opts.WatchEnabled()),
	)

	<-sup.Context().Done()
	notifier.Stopping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.Stop(shutdownCtx); err != nil {
		log.Error("ontime stopped with error", logx.Err(err))
		return err
	}
	log.Info("ontime stopped")
	return nil
}

func logConfig(opts config.Options) logx.Config {
	return logx.Config{
		Level:   opts.LogLevel,
		Console: true,
		File: logx.FileConfig{
			Enabled: opts.LogFile != "",
			Path:    opts.LogFile,
		},
	}
}

// openHistory returns a nil store when history is disabled.
func openHistory(opts config.Options, log logx.Logger) (history.Store, error) {
	busy, err := config.ParseDurationField("history_busy_timeout", opts.HistoryBusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := history.Open(history.Config{
		Driver:      opts.HistoryDriver,
		Path:        opts.HistoryPath,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "history")))
	if errors.Is(err, history.ErrDisabled) {
		return nil, nil
	}
	return st, err
}
