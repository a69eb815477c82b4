package main

import (
	"github.com/urfave/cli"

	"ontime/internal/config"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "options file (YAML or JSON); flags override its values",
		EnvVar: "ONTIME_CONFIG",
	},
	cli.IntFlag{
		Name:  "distance, d",
		Value: 90,
		Usage: "minutes after start/end during which the action may still fire",
	},
	cli.IntFlag{
		Name:  "distance-start",
		Usage: "override distance for the start edge",
	},
	cli.IntFlag{
		Name:  "distance-end",
		Usage: "override distance for the end edge",
	},
	cli.UintFlag{
		Name:  "fail, f",
		Usage: "failure flags: 1 retry on next tick, 2 keep failures out of the cache",
	},
	cli.IntFlag{
		Name:  "fail-on-code",
		Value: 1,
		Usage: "exit codes at or above this count as failure",
	},
	cli.UintFlag{
		Name:  "pipe, p",
		Value: 1,
		Usage: "redirected child streams: 1 stdout, 2 stderr, 3 both, 0 none",
	},
	cli.StringFlag{
		Name:  "pipe-to",
		Value: string(config.PipeToStderr),
		Usage: "where redirected output goes: stdout, stderr, file, none",
	},
	cli.StringFlag{
		Name:  "file",
		Usage: "output file for --pipe-to=file (appended)",
	},
	cli.StringFlag{
		Name:  "tick",
		Value: config.DefaultTick,
		Usage: "poll schedule (cron expression or @every)",
	},
	cli.BoolFlag{
		Name:  "no-watch",
		Usage: "do not reload plans when their files change",
	},
	cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "trace, debug, info, warn, error",
	},
	cli.StringFlag{
		Name:  "log-file",
		Usage: "also write JSON logs to this file",
	},
	cli.StringFlag{
		Name:  "history-driver",
		Usage: "dispatch history store: file, sqlite, bolt (empty disables)",
	},
	cli.StringFlag{
		Name:  "history-path",
		Usage: "history store location",
	},
	cli.StringFlag{
		Name:  "history-busy-timeout",
		Usage: "sqlite busy timeout, e.g. 5s",
	},
}

// options builds the runtime options: defaults, then the options file, then
// any flag given explicitly on the command line.
func options(c *cli.Context) (config.Options, error) {
	opts := config.Default()
	if path := c.GlobalString("config"); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return opts, err
		}
	}

	if c.GlobalIsSet("distance") {
		opts.Distance = c.GlobalInt("distance")
	}
	if c.GlobalIsSet("distance-start") {
		v := c.GlobalInt("distance-start")
		opts.DistanceStart = &v
	}
	if c.GlobalIsSet("distance-end") {
		v := c.GlobalInt("distance-end")
		opts.DistanceEnd = &v
	}
	if c.GlobalIsSet("fail") {
		opts.Fail = c.GlobalUint("fail")
	}
	if c.GlobalIsSet("fail-on-code") {
		opts.FailOnCode = c.GlobalInt("fail-on-code")
	}
	if c.GlobalIsSet("pipe") {
		opts.Pipe = c.GlobalUint("pipe")
	}
	if c.GlobalIsSet("pipe-to") {
		p, err := config.ParsePipeTo(c.GlobalString("pipe-to"))
		if err != nil {
			return opts, err
		}
		opts.PipeTo = p
	}
	if c.GlobalIsSet("file") {
		opts.File = c.GlobalString("file")
	}
	if c.GlobalIsSet("tick") {
		opts.Tick = c.GlobalString("tick")
	}
	if c.GlobalBool("no-watch") {
		off := false
		opts.Watch = &off
	}
	if c.GlobalIsSet("log-level") {
		opts.LogLevel = c.GlobalString("log-level")
	}
	if c.GlobalIsSet("log-file") {
		opts.LogFile = c.GlobalString("log-file")
	}
	if c.GlobalIsSet("history-driver") {
		opts.HistoryDriver = c.GlobalString("history-driver")
	}
	if c.GlobalIsSet("history-path") {
		opts.HistoryPath = c.GlobalString("history-path")
	}
	if c.GlobalIsSet("history-busy-timeout") {
		opts.HistoryBusyTimeout = c.GlobalString("history-busy-timeout")
	}

	return opts, opts.Validate()
}
