package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"ontime/internal/event"
	logx "ontime/pkg/logx"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, time.October, 19, 9, 5, 0, 0, time.Local)

func clock(h, m int) time.Time {
	return time.Date(2026, time.October, 19, h, m, 0, 0, time.Local)
}

func newFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

const mondayPlan = `
- start: "12:00"
  end: "13:00"
  execute_start: lunch-start
  execute_end: lunch-end
- start: "09:00"
  end: "17:00"
  execute_start: "true"
  execute_end: "true"
  during: notify
- start: "09:00"
  end: "10:00"
  execute_start: standup-start
  execute_end: standup-end
`

func TestSelect(t *testing.T) {
	t.Parallel()
	files := []string{"/etc/ontime/main.yml", "/etc/ontime/monday.yml"}
	path, isMain, err := Select(files, "monday")
	if err != nil || isMain || path != "/etc/ontime/monday.yml" {
		t.Fatalf("Select(monday) = %q, %v, %v", path, isMain, err)
	}
	path, isMain, err = Select(files, "tuesday")
	if err != nil || !isMain || path != "/etc/ontime/main.yml" {
		t.Fatalf("Select(tuesday) = %q, %v, %v", path, isMain, err)
	}
	// Directory names do not count.
	_, _, err = Select([]string{"/srv/main/monday-notes.txt.yml"}, "friday")
	if !IsKind(err, KindPlanNotFound) {
		t.Fatalf("Select(friday) err = %v, want plan not found", err)
	}
}

func TestParseSortsStableByStart(t *testing.T) {
	t.Parallel()
	fs := newFS(t, map[string]string{"/p/monday.yml": mondayPlan})

	p, err := Parse(fs, monday, []string{"/p/monday.yml"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Weekday != "monday" {
		t.Fatalf("Weekday = %q", p.Weekday)
	}
	if len(p.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(p.Events))
	}
	wantScripts := []string{"true", "standup-start", "lunch-start"}
	for i, w := range wantScripts {
		if p.Events[i].StartScript != w {
			t.Fatalf("event %d = %q, want %q (order %v)", i, p.Events[i].StartScript, w, scripts(p.Events))
		}
	}
	if !p.Events[0].Start.Equal(clock(9, 0)) || !p.Events[0].End.Equal(clock(17, 0)) {
		t.Fatalf("event 0 window = %v-%v", p.Events[0].Start, p.Events[0].End)
	}
	if p.Events[0].During != "notify" {
		t.Fatalf("during = %q", p.Events[0].During)
	}
	for i := range p.Events {
		if p.Events[i].Checksum == "" {
			t.Fatalf("event %d has no checksum", i)
		}
	}
}

func scripts(events []event.Event) []string {
	out := make([]string, len(events))
	for i := range events {
		out[i] = events[i].StartScript
	}
	return out
}

func TestParseMainFallback(t *testing.T) {
	t.Parallel()
	fs := newFS(t, map[string]string{"/p/main.yaml": `
monday:
  - start: "08:00"
    end: "08:30"
    execute_start: a
    execute_end: b
tuesday: []
`})
	p, err := Parse(fs, monday, []string{"/p/main.yaml"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Events) != 1 || p.Events[0].StartScript != "a" {
		t.Fatalf("events = %+v", p.Events)
	}

	tuesday, err := Parse(fs, monday.AddDate(0, 0, 1), []string{"/p/main.yaml"})
	if err != nil {
		t.Fatalf("Parse(tuesday): %v", err)
	}
	if len(tuesday.Events) != 0 {
		t.Fatalf("tuesday events = %d, want 0", len(tuesday.Events))
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		file      string
		content   string
		kind      Kind
		attribute string
	}{
		{
			name:      "main without weekday",
			file:      "/p/main.yml",
			content:   "tuesday: []\n",
			kind:      KindRequiredAttributeMissing,
			attribute: "monday",
		},
		{
			name:      "weekday file not a sequence",
			file:      "/p/monday.yml",
			content:   "start: \"09:00\"\n",
			kind:      KindRequiredAttributeMissing,
			attribute: "array of events",
		},
		{
			name:      "empty weekday file",
			file:      "/p/monday.yml",
			content:   "",
			kind:      KindRequiredAttributeMissing,
			attribute: "array of events",
		},
		{
			name:      "missing end",
			file:      "/p/monday.yml",
			content:   "- start: \"09:00\"\n  execute_start: a\n  execute_end: b\n",
			kind:      KindRequiredAttributeMissing,
			attribute: "end",
		},
		{
			name:      "missing execute_end",
			file:      "/p/monday.yml",
			content:   "- start: \"09:00\"\n  end: \"10:00\"\n  execute_start: a\n",
			kind:      KindRequiredAttributeMissing,
			attribute: "execute_end",
		},
		{
			name:    "hour out of range",
			file:    "/p/monday.yml",
			content: "- start: \"24:00\"\n  end: \"10:00\"\n  execute_start: a\n  execute_end: b\n",
			kind:    KindBadTimeFormat,
		},
		{
			name:    "not numeric",
			file:    "/p/monday.yml",
			content: "- start: \"nine:00\"\n  end: \"10:00\"\n  execute_start: a\n  execute_end: b\n",
			kind:    KindBadTimeFormat,
		},
		{
			name:    "no colon",
			file:    "/p/monday.yml",
			content: "- start: \"0900\"\n  end: \"10:00\"\n  execute_start: a\n  execute_end: b\n",
			kind:    KindBadTimeFormat,
		},
		{
			name:    "end before start",
			file:    "/p/monday.yml",
			content: "- start: \"10:00\"\n  end: \"09:00\"\n  execute_start: a\n  execute_end: b\n",
			kind:    KindInvalidWindow,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := newFS(t, map[string]string{tt.file: tt.content})
			p, err := Parse(fs, monday, []string{tt.file})
			if p != nil {
				t.Fatalf("expected no plan, got %d events", len(p.Events))
			}
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *plan.Error", err)
			}
			if pe.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v (%v)", pe.Kind, tt.kind, err)
			}
			if tt.attribute != "" && pe.Attribute != tt.attribute {
				t.Fatalf("attribute = %q, want %q", pe.Attribute, tt.attribute)
			}
		})
	}
}

func TestParseMissingEndNamesWeekday(t *testing.T) {
	t.Parallel()
	fs := newFS(t, map[string]string{"/p/monday.yml": "- start: \"09:00\"\n  execute_start: a\n  execute_end: b\n"})
	_, err := Parse(fs, monday, []string{"/p/monday.yml"})
	if err == nil || err.Error() != "required attribute end missing for monday plan" {
		t.Fatalf("err = %v", err)
	}
}

func TestParseUnreadableFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	_, err := Parse(fs, monday, []string{"/p/monday.yml"})
	if !IsKind(err, KindFileNotFound) {
		t.Fatalf("err = %v, want file not found", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v should wrap os.ErrNotExist", err)
	}
}

func TestLoadMergesLedgerAcrossRestart(t *testing.T) {
	t.Parallel()
	fs := newFS(t, map[string]string{"/p/monday.yml": mondayPlan})
	files := []string{"/p/monday.yml"}

	p, err := Load(fs, monday, files, "/cache", logx.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p.Events[0].Executed.StartDone = true
	if err := p.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	again, err := Load(fs, monday, files, "/cache", logx.Nop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Events[0].Checksum != p.Events[0].Checksum {
		t.Fatal("checksum changed across reload")
	}
	if !again.Events[0].Executed.StartDone {
		t.Fatal("start flag lost across reload")
	}
	// Started before the restart, so only the during script is due.
	if got := event.Decide(&again.Events[0], clock(9, 6), event.Uniform(90*time.Minute)); got != event.ActionLoop {
		t.Fatalf("Decide after restart = %v, want loop", got)
	}
	if len(again.InFlight()) != 1 {
		t.Fatalf("in flight = %d, want 1", len(again.InFlight()))
	}

	// Next day: the ledger is reset.
	nextFiles := []string{"/p/monday.yml", "/p/main.yml"}
	if err := afero.WriteFile(fs, "/p/main.yml", []byte("tuesday: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tue, err := Load(fs, monday.AddDate(0, 0, 1), nextFiles, "/cache", logx.Nop())
	if err != nil {
		t.Fatalf("Load tuesday: %v", err)
	}
	if tue.Ledger.Date() != "2026-10-20" || len(tue.Ledger.Entries()) != 0 {
		t.Fatalf("ledger not reset: %s %v", tue.Ledger.Date(), tue.Ledger.Entries())
	}
}

func TestLoaderUsesFreshCandidates(t *testing.T) {
	t.Parallel()
	fs := newFS(t, map[string]string{"/p/monday.yml": mondayPlan})
	calls := 0
	l := &Loader{
		FS:       fs,
		CacheDir: "/cache",
		Files: func() ([]string, error) {
			calls++
			return []string{"/p/monday.yml"}, nil
		},
	}
	if _, err := l.Load(monday); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := l.Load(monday); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if calls != 2 {
		t.Fatalf("Files called %d times, want 2", calls)
	}
}

func TestWatcherSignalsOnPlanChange(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, logx.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Keep writing until the watcher has registered and fires.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-w.C():
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(filepath.Join(dir, "monday.yml"), []byte("[]\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change signal")
		}
	}
}
