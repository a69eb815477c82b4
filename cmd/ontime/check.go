package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"ontime/internal/config"
	"ontime/internal/dirs"
	"ontime/internal/event"
	"ontime/internal/plan"
	logx "ontime/pkg/logx"
)

func check(c *cli.Context) error {
	opts, err := options(c)
	if err != nil {
		return err
	}
	return checkPlan(c.App.Writer, dirs.NewResolver(), opts, time.Now())
}

// checkPlan loads today's plan with the real ledger flags and prints the
// decision for every event. Ledger writes land in memory, never on disk.
func checkPlan(w io.Writer, res *dirs.Resolver, opts config.Options, now time.Time) error {
	files, err := res.PlanFiles()
	if err != nil {
		return err
	}
	fs := afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(res.FS), afero.NewMemMapFs())
	p, err := plan.Load(fs, now, files, res.CacheDir(), logx.Nop())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s plan from %s: %d events\n", p.Weekday, p.File, len(p.Events))
	tol := opts.Tolerance()
	for i := range p.Events {
		e := &p.Events[i]
		action := event.Decide(e, now, tol)
		fmt.Fprintf(w, "%s-%s  %-5s  start=%-5t end=%-5t  %s  %s | %s",
			e.Start.Format("15:04"), e.End.Format("15:04"), action,
			e.Executed.StartDone, e.Executed.EndDone,
			e.Checksum[:8], e.StartScript, e.EndScript)
		if e.During != "" {
			fmt.Fprintf(w, " | during: %s", e.During)
		}
		fmt.Fprintln(w)
	}
	return nil
}
