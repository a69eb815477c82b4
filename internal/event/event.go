// Package event models one scheduled window (start/end actions plus an
// optional recurring action) and decides, for a given instant, which action
// is due.
package event

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// Action is the outcome of Decide.
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionEnd
	ActionLoop
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionEnd:
		return "end"
	case ActionLoop:
		return "loop"
	default:
		return "none"
	}
}

// Executed records which edges of an event have fired today.
type Executed struct {
	StartDone bool
	EndDone   bool
}

// Event is one scheduled window for a single calendar day.
type Event struct {
	Start time.Time
	End   time.Time

	StartScript string
	EndScript   string
	// During runs on every tick while the window is open. Optional.
	During string

	Executed Executed
	Checksum string
}

// New builds an event and computes its checksum.
func New(start, end time.Time, startScript, endScript, during string) Event {
	e := Event{
		Start:       start,
		End:         end,
		StartScript: startScript,
		EndScript:   endScript,
		During:      during,
	}
	e.Checksum = Checksum(e)
	return e
}

// Checksum returns the hex MD5 digest of start, end and both edge scripts.
//
// The digest identifies an event across restarts; During and Executed do not
// take part. Not collision-proof, only deterministic.
func Checksum(e Event) string {
	buf := make([]byte, 0, 40+len(e.StartScript)+len(e.EndScript))
	buf = strconv.AppendInt(buf, e.Start.Unix(), 10)
	buf = strconv.AppendInt(buf, e.End.Unix(), 10)
	buf = append(buf, e.StartScript...)
	buf = append(buf, e.EndScript...)
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}

// Tolerance bounds how late an edge may still fire.
type Tolerance struct {
	Start time.Duration
	End   time.Duration
}

// Uniform returns a tolerance with the same window on both edges.
func Uniform(d time.Duration) Tolerance { return Tolerance{Start: d, End: d} }

// Decide reports which action is due for e at now.
//
// An edge fires only inside [edge, edge+tolerance]; past that it is skipped
// for this occurrence, so a long-stopped process does not replay stale work.
func Decide(e *Event, now time.Time, tol Tolerance) Action {
	if !e.Executed.StartDone && within(now, e.Start, tol.Start) {
		return ActionStart
	}
	if e.Executed.StartDone && !e.Executed.EndDone {
		if within(now, e.End, tol.End) {
			return ActionEnd
		}
		if now.Before(e.End) && e.During != "" {
			return ActionLoop
		}
	}
	return ActionNone
}

func within(now, edge time.Time, tol time.Duration) bool {
	return !now.Before(edge) && !now.After(edge.Add(tol))
}

// ShouldReschedule reports whether the event is in flight: started but not ended.
func ShouldReschedule(e *Event) bool {
	return e.Executed.StartDone && !e.Executed.EndDone
}

// Script returns the command string dispatched for action a.
func (e *Event) Script(a Action) string {
	switch a {
	case ActionStart:
		return e.StartScript
	case ActionEnd:
		return e.EndScript
	case ActionLoop:
		return e.During
	default:
		return ""
	}
}
