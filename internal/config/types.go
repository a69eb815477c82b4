package config

import (
	"time"

	"ontime/internal/event"
)

// Fail flags (Options.Fail bitmask).
const (
	FailRetry      uint = 1 << 0 // revert the optimistic flag so the next tick retries
	FailDoNotWrite uint = 1 << 1 // keep a failed attempt out of the ledger
)

// Pipe flags (Options.Pipe bitmask): which child streams are redirected.
const (
	PipeNone   uint = 0
	PipeStdout uint = 1 << 0
	PipeStderr uint = 1 << 1
)

// PipeTo is the destination of redirected child output.
type PipeTo string

const (
	PipeToStdout PipeTo = "stdout"
	PipeToStderr PipeTo = "stderr"
	PipeToFile   PipeTo = "file"
	PipeToNone   PipeTo = "none"
)

// Options is the runtime configuration, built once at startup and passed
// explicitly to the loader, scheduler and executor.
//
// Defaults (see Default):
//   - distance: 90 (minutes)
//   - fail: 0, fail_on_code: 1
//   - pipe: 1 (stdout), pipe_to: "stderr"
//   - tick: "@every 1m"
//   - watch: true
type Options struct {
	// Distance is the default tolerance in minutes for both window edges.
	Distance int `json:"distance"`
	// DistanceStart/DistanceEnd override Distance per edge when set.
	DistanceStart *int `json:"distance_start,omitempty"`
	DistanceEnd   *int `json:"distance_end,omitempty"`

	Fail       uint `json:"fail"`
	FailOnCode int  `json:"fail_on_code"`

	Pipe   uint   `json:"pipe"`
	PipeTo PipeTo `json:"pipe_to"`
	File   string `json:"file,omitempty"`

	// Tick is a cron expression or descriptor (robfig/cron), e.g. "@every 1m".
	Tick string `json:"tick,omitempty"`
	// Watch enables plan hot reload. Pointer so an omitted key keeps the default.
	Watch *bool `json:"watch,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
	LogFile  string `json:"log_file,omitempty"`

	HistoryDriver string `json:"history_driver,omitempty"`
	HistoryPath   string `json:"history_path,omitempty"`
	// HistoryBusyTimeout is a Go duration string (sqlite only).
	HistoryBusyTimeout string `json:"history_busy_timeout,omitempty"`
}

// Default returns the options used when nothing else is configured.
func Default() Options {
	watch := true
	return Options{
		Distance:   90,
		FailOnCode: 1,
		Pipe:       PipeStdout,
		PipeTo:     PipeToStderr,
		Tick:       DefaultTick,
		Watch:      &watch,
		LogLevel:   "info",
	}
}

// Tolerance resolves the per-edge tolerance windows.
func (o Options) Tolerance() event.Tolerance {
	start, end := o.Distance, o.Distance
	if o.DistanceStart != nil {
		start = *o.DistanceStart
	}
	if o.DistanceEnd != nil {
		end = *o.DistanceEnd
	}
	return event.Tolerance{
		Start: time.Duration(start) * time.Minute,
		End:   time.Duration(end) * time.Minute,
	}
}

func (o Options) Retry() bool      { return o.Fail&FailRetry != 0 }
func (o Options) DoNotWrite() bool { return o.Fail&FailDoNotWrite != 0 }

// WatchEnabled reports whether plan hot reload is on (default true).
func (o Options) WatchEnabled() bool { return o.Watch == nil || *o.Watch }
