// Package executor runs plan commands as child processes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"ontime/internal/config"
	logx "ontime/pkg/logx"
)

// ErrEmptyCommand is returned for blank commands.
var ErrEmptyCommand = errors.New("empty command")

// ExecutionError reports a failed run. Code is -1 when the process never
// produced an exit status (spawn failure, killed by a signal).
type ExecutionError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execute %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("execute %q: exit code %d", e.Command, e.Code)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result describes a finished run, failed or not.
type Result struct {
	Code int
	Took time.Duration
}

// Executor spawns commands with the configured output routing.
type Executor struct {
	failOnCode int
	pipe       uint
	pipeTo     config.PipeTo
	file       string
	log        logx.Logger

	// Parent streams; swapped in tests.
	stdout io.Writer
	stderr io.Writer
}

func New(opts config.Options, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Executor{
		failOnCode: opts.FailOnCode,
		pipe:       opts.Pipe,
		pipeTo:     opts.PipeTo,
		file:       opts.File,
		log:        log,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
}

// Run splits command on whitespace, runs it and waits for it to exit.
// No shell is involved. The child is killed when ctx is cancelled.
func (x *Executor) Run(ctx context.Context, command string) (Result, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return Result{Code: -1}, &ExecutionError{Command: command, Code: -1, Err: ErrEmptyCommand}
	}

	sink, closeSink, err := x.sink()
	if err != nil {
		return Result{Code: -1}, &ExecutionError{Command: command, Code: -1, Err: err}
	}
	defer closeSink()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = x.stdout
	cmd.Stderr = x.stderr
	if x.pipe&config.PipeStdout != 0 {
		cmd.Stdout = sink
	}
	if x.pipe&config.PipeStderr != 0 {
		cmd.Stderr = sink
	}

	started := time.Now()
	err = cmd.Run()
	res := Result{Code: -1, Took: time.Since(started)}
	if cmd.ProcessState != nil {
		res.Code = cmd.ProcessState.ExitCode()
	}

	x.log.Debug("command finished",
		logx.String("cmd", command),
		logx.Int("code", res.Code),
		logx.Duration("took", res.Took),
	)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && res.Code >= 0:
		// Non-zero exit; judged against fail_on_code below.
	default:
		return res, &ExecutionError{Command: command, Code: res.Code, Err: err}
	}

	if res.Code >= x.failOnCode {
		return res, &ExecutionError{Command: command, Code: res.Code}
	}
	return res, nil
}

// sink returns the writer redirected streams go to. A nil writer discards
// output (os/exec connects it to the null device).
func (x *Executor) sink() (io.Writer, func(), error) {
	noop := func() {}
	if x.pipe == config.PipeNone {
		return nil, noop, nil
	}
	switch x.pipeTo {
	case config.PipeToStdout:
		return x.stdout, noop, nil
	case config.PipeToStderr:
		return x.stderr, noop, nil
	case config.PipeToFile:
		f, err := os.OpenFile(x.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("open output file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	default:
		return nil, noop, nil
	}
}
