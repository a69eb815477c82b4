package event

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, time.October, 19, h, m, 0, 0, time.Local)
}

func TestChecksumDeterministic(t *testing.T) {
	t.Parallel()
	a := New(at(9, 0), at(17, 0), "true", "true", "")
	b := New(at(9, 0), at(17, 0), "true", "true", "notify")
	if a.Checksum != b.Checksum {
		t.Fatalf("checksum depends on during: %s vs %s", a.Checksum, b.Checksum)
	}
	if len(a.Checksum) != 32 {
		t.Fatalf("checksum length = %d, want 32 hex chars", len(a.Checksum))
	}

	b.Executed = Executed{StartDone: true}
	if Checksum(b) != a.Checksum {
		t.Fatal("checksum depends on executed flags")
	}
}

func TestChecksumChangesWithEachField(t *testing.T) {
	t.Parallel()
	base := New(at(9, 0), at(17, 0), "start.sh", "end.sh", "")
	variants := map[string]Event{
		"start":        New(at(9, 1), at(17, 0), "start.sh", "end.sh", ""),
		"end":          New(at(9, 0), at(17, 1), "start.sh", "end.sh", ""),
		"start_script": New(at(9, 0), at(17, 0), "other.sh", "end.sh", ""),
		"end_script":   New(at(9, 0), at(17, 0), "start.sh", "other.sh", ""),
	}
	for name, v := range variants {
		if v.Checksum == base.Checksum {
			t.Errorf("changing %s did not change checksum", name)
		}
	}
}

func TestDecideStartToleranceBoundary(t *testing.T) {
	t.Parallel()
	tol := Uniform(90 * time.Minute)
	e := New(at(9, 0), at(17, 0), "true", "true", "")

	tests := []struct {
		name string
		now  time.Time
		want Action
	}{
		{name: "before start", now: at(8, 59), want: ActionNone},
		{name: "at start", now: at(9, 0), want: ActionStart},
		{name: "end of tolerance", now: at(10, 30), want: ActionStart},
		{name: "one second late", now: at(10, 30).Add(time.Second), want: ActionNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(&e, tt.now, tol); got != tt.want {
				t.Fatalf("Decide(%s) = %v, want %v", tt.now.Format("15:04:05"), got, tt.want)
			}
		})
	}
}

func TestDecidePerEdgeTolerance(t *testing.T) {
	t.Parallel()
	tol := Tolerance{Start: 5 * time.Minute, End: 90 * time.Minute}
	e := New(at(9, 0), at(17, 0), "true", "true", "")

	if got := Decide(&e, at(9, 6), tol); got != ActionNone {
		t.Fatalf("start edge used wrong tolerance: %v", got)
	}
	e.Executed.StartDone = true
	if got := Decide(&e, at(18, 0), tol); got != ActionEnd {
		t.Fatalf("end edge at +60m = %v, want end", got)
	}
}

func TestDecideEndAndLoop(t *testing.T) {
	t.Parallel()
	tol := Uniform(90 * time.Minute)
	e := New(at(9, 0), at(17, 0), "true", "true", "notify")
	e.Executed = Executed{StartDone: true}

	if got := Decide(&e, at(12, 0), tol); got != ActionLoop {
		t.Fatalf("mid-window = %v, want loop", got)
	}
	if got := Decide(&e, at(17, 0), tol); got != ActionEnd {
		t.Fatalf("at end = %v, want end", got)
	}

	e.During = ""
	if got := Decide(&e, at(12, 0), tol); got != ActionNone {
		t.Fatalf("mid-window without during = %v, want none", got)
	}

	e.Executed.EndDone = true
	if got := Decide(&e, at(17, 10), tol); got != ActionNone {
		t.Fatalf("after end done = %v, want none", got)
	}
}

func TestDecideAfterStartDoneIsNotRepeated(t *testing.T) {
	t.Parallel()
	e := New(at(9, 0), at(17, 0), "true", "true", "")
	e.Executed = Executed{StartDone: true}
	if got := Decide(&e, at(9, 6), Uniform(90*time.Minute)); got != ActionNone {
		t.Fatalf("Decide = %v, want none", got)
	}
}

func TestShouldReschedule(t *testing.T) {
	t.Parallel()
	e := New(at(9, 0), at(17, 0), "a", "b", "")
	if ShouldReschedule(&e) {
		t.Fatal("fresh event is not in flight")
	}
	e.Executed.StartDone = true
	if !ShouldReschedule(&e) {
		t.Fatal("started event should be in flight")
	}
	e.Executed.EndDone = true
	if ShouldReschedule(&e) {
		t.Fatal("finished event is not in flight")
	}
}

func TestScript(t *testing.T) {
	t.Parallel()
	e := New(at(9, 0), at(17, 0), "a", "b", "c")
	for a, want := range map[Action]string{ActionStart: "a", ActionEnd: "b", ActionLoop: "c", ActionNone: ""} {
		if got := e.Script(a); got != want {
			t.Errorf("Script(%v) = %q, want %q", a, got, want)
		}
	}
}
