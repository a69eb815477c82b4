package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the history store.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file
//   - "bolt": bbolt database file
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Run records one dispatched command.
// Keep it compact and schema-stable.
type Run struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Weekday  string    `json:"weekday"`
	Checksum string    `json:"checksum"`
	Action   string    `json:"action"`
	Command  string    `json:"command"`
	Code     int       `json:"code"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

// Store persists dispatch history. Recent returns newest first.
type Store interface {
	Record(ctx context.Context, r Run) error
	Recent(ctx context.Context, n int) ([]Run, error)
	Close() error
}

// stamp fills the ID and time of a run about to be recorded.
func stamp(r Run) Run {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	return r
}
