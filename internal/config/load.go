package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ontime/internal/history"
	logx "ontime/pkg/logx"
)

// Load reads an options file (JSON or YAML) on top of Default().
// Keys absent from the file keep their default value.
func Load(path string) (Options, error) {
	opts := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := decode(path, b, &opts); err != nil {
		return opts, fmt.Errorf("config %s: %w", path, err)
	}
	return opts, nil
}

func decode(path string, b []byte, opts *Options) error {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(opts); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// Validate checks ranges and cross-field requirements.
func (o Options) Validate() error {
	var errs []error
	if o.Distance < 0 {
		errs = append(errs, fmt.Errorf("distance must be >= 0, got %d", o.Distance))
	}
	if o.DistanceStart != nil && *o.DistanceStart < 0 {
		errs = append(errs, fmt.Errorf("distance_start must be >= 0, got %d", *o.DistanceStart))
	}
	if o.DistanceEnd != nil && *o.DistanceEnd < 0 {
		errs = append(errs, fmt.Errorf("distance_end must be >= 0, got %d", *o.DistanceEnd))
	}
	if o.Fail > FailRetry|FailDoNotWrite {
		errs = append(errs, fmt.Errorf("fail: unknown flags in %d", o.Fail))
	}
	if o.FailOnCode < 0 {
		errs = append(errs, fmt.Errorf("fail_on_code must be >= 0, got %d", o.FailOnCode))
	}
	if o.Pipe > PipeStdout|PipeStderr {
		errs = append(errs, fmt.Errorf("pipe: unknown flags in %d", o.Pipe))
	}
	switch o.PipeTo {
	case PipeToStdout, PipeToStderr, PipeToNone:
	case PipeToFile:
		if o.Pipe != PipeNone && strings.TrimSpace(o.File) == "" {
			errs = append(errs, errors.New("pipe_to=file requires file"))
		}
	default:
		errs = append(errs, fmt.Errorf("pipe_to: value %q not allowed (stdout, stderr, file, none)", o.PipeTo))
	}
	if _, err := ParseTick(o.Tick); err != nil {
		errs = append(errs, err)
	}
	if !logx.ValidLevel(o.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", o.LogLevel))
	}
	if !history.ValidDriver(o.HistoryDriver) {
		errs = append(errs, fmt.Errorf("history_driver: unknown driver %q", o.HistoryDriver))
	}
	if _, err := ParseDurationField("history_busy_timeout", o.HistoryBusyTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParsePipeTo parses a pipe_to value.
func ParsePipeTo(s string) (PipeTo, error) {
	p := PipeTo(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PipeToStdout, PipeToStderr, PipeToFile, PipeToNone:
		return p, nil
	}
	return "", fmt.Errorf("pipe_to: value %q not allowed", s)
}
