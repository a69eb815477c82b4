package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	logx "ontime/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if st != nil || !errors.Is(err, ErrDisabled) {
			t.Fatalf("Open(%q) = %v, %v; want ErrDisabled", driver, st, err)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if ValidDriver("redis") || !ValidDriver("bolt") {
		t.Fatal("ValidDriver mismatch")
	}
}

func TestDrivers(t *testing.T) {
	t.Parallel()
	drivers := map[string]string{
		"file":   "history.jsonl",
		"sqlite": "history.db",
		"bolt":   "history.bolt",
	}
	for driver, name := range drivers {
		driver, name := driver, name
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nested", name)
			ctx := context.Background()

			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			if got, err := st.Recent(ctx, 5); err != nil || len(got) != 0 {
				t.Fatalf("Recent on empty store = %v, %v", got, err)
			}

			base := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
			for i := 0; i < 4; i++ {
				r := Run{
					At:       base.Add(time.Duration(i) * time.Minute),
					Weekday:  "monday",
					Checksum: fmt.Sprintf("sum%d", i),
					Action:   "start",
					Command:  "backup.sh",
					Code:     i,
					OK:       i == 0,
					TookMS:   int64(10 * i),
				}
				if i > 0 {
					r.Error = fmt.Sprintf("exit code %d", i)
				}
				if err := st.Record(ctx, r); err != nil {
					t.Fatalf("Record %d: %v", i, err)
				}
			}

			got, err := st.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("Recent len = %d, want 3", len(got))
			}
			for i, want := range []string{"sum3", "sum2", "sum1"} {
				if got[i].Checksum != want {
					t.Fatalf("Recent[%d] = %s, want %s", i, got[i].Checksum, want)
				}
				if got[i].ID == "" {
					t.Fatalf("Recent[%d] has no ID", i)
				}
			}
			if got[0].Code != 3 || got[0].OK || got[0].Error != "exit code 3" || got[0].TookMS != 30 {
				t.Fatalf("Recent[0] = %+v", got[0])
			}
			if !got[0].At.Equal(base.Add(3 * time.Minute)) {
				t.Fatalf("Recent[0].At = %v", got[0].At)
			}

			all, err := st.Recent(ctx, 10)
			if err != nil || len(all) != 4 {
				t.Fatalf("Recent(10) = %d, %v", len(all), err)
			}
			if !all[3].OK || all[3].Error != "" {
				t.Fatalf("oldest run = %+v", all[3])
			}

			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Survives reopen.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			again, err := st.Recent(ctx, 1)
			if err != nil || len(again) != 1 || again[0].ID != got[0].ID {
				t.Fatalf("after reopen = %+v, %v", again, err)
			}
		})
	}
}

func TestBoltSharedBetweenProcesses(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.bolt")
	ctx := context.Background()

	daemon, err := Open(Config{Driver: "bolt", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open daemon store: %v", err)
	}
	defer daemon.Close()
	cli, err := Open(Config{Driver: "bolt", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open second store while first is open: %v", err)
	}
	defer cli.Close()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 20; i++ {
			if err := daemon.Record(ctx, Run{Weekday: "monday", Action: "loop", Command: "tick.sh", OK: true}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	for i := 0; i < 20; i++ {
		if _, err := cli.Recent(ctx, 5); err != nil {
			t.Fatalf("Recent while recording: %v", err)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := cli.Recent(ctx, 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 20 {
		t.Fatalf("runs = %d, want 20", len(runs))
	}
}
