// Package ledger persists which edges of today's events already fired.
//
// The ledger is a single flat file:
//
//	2026-10-19
//	<checksum> <start_done> <end_done>
//	...
//
// A ledger dated other than today is stale and is rewritten empty before use.
package ledger

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"ontime/internal/event"
	logx "ontime/pkg/logx"
)

// FileName is the ledger file name inside the cache directory.
const FileName = "ontime.cache"

const dateLayout = "2006-01-02"

// sentinelDate is older than any real date so the first Cleanup always resets.
const sentinelDate = "1990-01-01"

// Entry is one persisted row.
type Entry struct {
	Checksum string
	Executed event.Executed
}

type Ledger struct {
	fs   afero.Fs
	path string
	log  logx.Logger

	date    string
	entries []Entry
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithLogger(log logx.Logger) Option { return func(l *Ledger) { l.log = log } }

// Open reads (creating if absent) the ledger file in dir.
func Open(fs afero.Fs, dir string, opts ...Option) (*Ledger, error) {
	l := &Ledger{fs: fs, path: filepath.Join(dir, FileName), log: logx.Nop()}
	for _, o := range opts {
		o(l)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir %s: %w", dir, err)
	}
	f, err := fs.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	if err := l.read(f); err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	return l, nil
}

func (l *Ledger) read(f afero.File) error {
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		l.date = sentinelDate
		return sc.Err()
	}

	header := strings.TrimSpace(sc.Text())
	if _, err := time.Parse(dateLayout, header); err != nil {
		l.log.Warn("ledger header unreadable; treating as stale", logx.String("path", l.path), logx.String("header", header))
		l.date = sentinelDate
		return nil
	}
	l.date = header

	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := Entry{Checksum: fields[0]}
		if len(fields) > 1 {
			row.Executed.StartDone = parseFlag(fields[1])
		}
		if len(fields) > 2 {
			row.Executed.EndDone = parseFlag(fields[2])
		}
		l.entries = append(l.entries, row)
	}
	return sc.Err()
}

// parseFlag accepts only the literal tokens written by Persist; anything else is false.
func parseFlag(s string) bool { return s == "true" }

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Date returns the date the ledger is valid for, as YYYY-MM-DD.
func (l *Ledger) Date() string { return l.date }

// Entries returns a copy of the rows currently held.
func (l *Ledger) Entries() []Entry { return append([]Entry(nil), l.entries...) }

// Cleanup resets the ledger when it belongs to a day other than today.
func (l *Ledger) Cleanup(today time.Time) error {
	key := today.Format(dateLayout)
	if key == l.date {
		return nil
	}
	l.log.Debug("ledger stale; resetting", logx.String("was", l.date), logx.String("today", key))

	if err := l.write([]byte(key + "\n")); err != nil {
		return err
	}
	l.date = key
	l.entries = nil
	return nil
}

// MergeInto copies persisted flags onto events with a matching checksum and
// returns how many events were updated.
//
// Rows sharing a checksum are matched by occurrence: the n-th such row
// updates the n-th such event, so two identical events keep separate flags.
func (l *Ledger) MergeInto(events []event.Event) int {
	seen := make(map[string]int, len(l.entries))
	merged := 0
	for _, row := range l.entries {
		n := seen[row.Checksum]
		seen[row.Checksum] = n + 1
		if i := nth(events, row.Checksum, n); i >= 0 {
			events[i].Executed = row.Executed
			merged++
		}
	}
	return merged
}

func nth(events []event.Event, checksum string, n int) int {
	for i := range events {
		if events[i].Checksum != checksum {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

// Persist rewrites the whole ledger from events.
func (l *Ledger) Persist(events []event.Event) error {
	var b bytes.Buffer
	b.WriteString(l.date)
	b.WriteByte('\n')

	rows := make([]Entry, 0, len(events))
	for i := range events {
		e := &events[i]
		if e.Checksum == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %t %t\n", e.Checksum, e.Executed.StartDone, e.Executed.EndDone)
		rows = append(rows, Entry{Checksum: e.Checksum, Executed: e.Executed})
	}

	if err := l.write(b.Bytes()); err != nil {
		return err
	}
	l.entries = rows
	return nil
}

// write replaces the ledger contents via a temp file and rename.
func (l *Ledger) write(data []byte) error {
	tmp := l.path + ".tmp"
	if err := afero.WriteFile(l.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", tmp, err)
	}
	if err := l.fs.Rename(tmp, l.path); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("ledger: replace %s: %w", l.path, err)
	}
	return nil
}
