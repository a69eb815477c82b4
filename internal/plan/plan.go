// Package plan selects and parses the plan for a calendar day and binds it to
// that day's ledger.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	yaml "go.yaml.in/yaml/v3"

	"ontime/internal/event"
	"ontime/internal/ledger"
	"ontime/internal/weekday"
	logx "ontime/pkg/logx"
)

const mainName = "main"

// Plan is the resolved schedule for one calendar day. It owns its events;
// the scheduler mutates them in place by index.
type Plan struct {
	Weekday string
	Date    time.Time
	File    string
	Events  []event.Event

	// Ledger is nil for plans built by Parse.
	Ledger *ledger.Ledger
}

// Persist writes every event's flags to the plan's ledger.
func (p *Plan) Persist() error { return p.PersistExcept(nil) }

// PersistExcept writes the events' flags, but records every edge set in
// failed (keyed by event index) as not done. The events themselves are not
// touched.
func (p *Plan) PersistExcept(failed map[int]event.Executed) error {
	if p.Ledger == nil {
		return errors.New("plan has no ledger")
	}
	if len(failed) == 0 {
		return p.Ledger.Persist(p.Events)
	}
	rows := append([]event.Event(nil), p.Events...)
	for i, f := range failed {
		if i < 0 || i >= len(rows) {
			continue
		}
		if f.StartDone {
			rows[i].Executed.StartDone = false
		}
		if f.EndDone {
			rows[i].Executed.EndDone = false
		}
	}
	return p.Ledger.Persist(rows)
}

// InFlight returns the events that started but have not ended.
func (p *Plan) InFlight() []event.Event {
	var out []event.Event
	for i := range p.Events {
		if event.ShouldReschedule(&p.Events[i]) {
			out = append(out, p.Events[i])
		}
	}
	return out
}

// Select picks the plan file for a weekday: a file whose name contains the
// weekday wins over one containing "main". isMain reports the fallback.
func Select(candidates []string, day string) (path string, isMain bool, err error) {
	for _, c := range candidates {
		if strings.Contains(filepath.Base(c), day) {
			return c, false, nil
		}
	}
	for _, c := range candidates {
		if strings.Contains(filepath.Base(c), mainName) {
			return c, true, nil
		}
	}
	return "", false, planNotFound(day)
}

// Parse selects, reads and parses the plan for date without touching any
// ledger. Events come back sorted by start; equal starts keep file order.
func Parse(fs afero.Fs, date time.Time, candidates []string) (*Plan, error) {
	day := weekday.Name(date)
	path, isMain, err := Select(candidates, day)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fileNotFound(path, err)
	}

	records, err := eventNodes(path, data, day, isMain)
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(records))
	for _, n := range records {
		e, err := parseEvent(n, date, day)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	return &Plan{Weekday: day, Date: date, File: path, Events: events}, nil
}

// Load parses the plan for date, then reconciles the ledger in cacheDir
// against date and merges the persisted flags into the events.
func Load(fs afero.Fs, date time.Time, candidates []string, cacheDir string, log logx.Logger) (*Plan, error) {
	p, err := Parse(fs, date, candidates)
	if err != nil {
		return nil, err
	}

	l, err := ledger.Open(fs, cacheDir, ledger.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := l.Cleanup(date); err != nil {
		return nil, err
	}
	merged := l.MergeInto(p.Events)
	p.Ledger = l

	log.Debug("plan loaded",
		logx.String("weekday", p.Weekday),
		logx.String("file", p.File),
		logx.Int("events", len(p.Events)),
		logx.Int("merged", merged),
	)
	return p, nil
}

func eventNodes(path string, data []byte, day string, isMain bool) ([]*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var root *yaml.Node
	if len(doc.Content) > 0 {
		root = doc.Content[0]
	}

	if isMain {
		seq := mappingValue(root, day)
		if seq == nil || seq.Kind != yaml.SequenceNode {
			return nil, attributeMissing(day, mainName)
		}
		return seq.Content, nil
	}
	if root == nil || root.Kind != yaml.SequenceNode {
		return nil, attributeMissing("array of events", day)
	}
	return root.Content, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// record mirrors one YAML event entry. Pointers tell "missing" from "empty".
type record struct {
	Start        *string `yaml:"start"`
	End          *string `yaml:"end"`
	ExecuteStart *string `yaml:"execute_start"`
	ExecuteEnd   *string `yaml:"execute_end"`
	During       *string `yaml:"during"`
}

func parseEvent(n *yaml.Node, date time.Time, day string) (event.Event, error) {
	var r record
	if n.Kind == yaml.MappingNode {
		if err := n.Decode(&r); err != nil {
			return event.Event{}, fmt.Errorf("%s plan, line %d: %w", day, n.Line, err)
		}
	}

	if r.Start == nil {
		return event.Event{}, attributeMissing("start", day)
	}
	start, err := parseClock(*r.Start, date, day)
	if err != nil {
		return event.Event{}, err
	}
	if r.End == nil {
		return event.Event{}, attributeMissing("end", day)
	}
	end, err := parseClock(*r.End, date, day)
	if err != nil {
		return event.Event{}, err
	}
	if r.ExecuteStart == nil {
		return event.Event{}, attributeMissing("execute_start", day)
	}
	if r.ExecuteEnd == nil {
		return event.Event{}, attributeMissing("execute_end", day)
	}
	if !end.After(start) {
		return event.Event{}, invalidWindow(day, *r.Start+"-"+*r.End)
	}

	var during string
	if r.During != nil {
		during = *r.During
	}
	return event.New(start, end, *r.ExecuteStart, *r.ExecuteEnd, during), nil
}

// parseClock interprets "HH:MM" as a wall-clock time on date in date's location.
func parseClock(s string, date time.Time, day string) (time.Time, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return time.Time{}, badTimeFormat(day, fmt.Errorf("%q: missing ':'", s))
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return time.Time{}, badTimeFormat(day, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return time.Time{}, badTimeFormat(day, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, badTimeFormat(day, fmt.Errorf("%q out of range", s))
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location()), nil
}
