package plan

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ontime/internal/dirs"
	logx "ontime/pkg/logx"
)

// Watcher signals when plan files in a directory change.
//
// Signals coalesce: many writes within the debounce window, or while the
// consumer is busy, produce a single pending notification.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      logx.Logger
	ch       chan struct{}
}

func NewWatcher(dir string, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		dir:      dir,
		debounce: 250 * time.Millisecond,
		log:      log,
		ch:       make(chan struct{}, 1),
	}
}

// C delivers one value per (debounced) change burst.
func (w *Watcher) C() <-chan struct{} { return w.ch }

func (w *Watcher) notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Run watches until ctx is done. The underlying fsnotify watcher is
// recreated with jittered backoff whenever it breaks.
func (w *Watcher) Run(ctx context.Context) error {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		return wait
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.notify)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fw.Add(w.dir); err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			wait := nextWait()
			w.log.Warn("plan watch init failed", logx.Err(err), logx.String("dir", w.dir), logx.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
				continue
			}
		}

		backoff = restartBackoffBase
		w.log.Debug("plan watcher started", logx.String("dir", w.dir))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if !dirs.IsPlanFile(filepath.Base(ev.Name)) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					w.log.Debug("plan change detected", logx.String("file", ev.Name), logx.String("op", ev.Op.String()))
					debounce()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means events were missed; reload once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					w.log.Warn("plan watch overflow; forcing reload", logx.Err(err))
					debounce()
					continue
				}
				w.log.Warn("plan watch error", logx.Err(err), logx.String("dir", w.dir))
			}
		}

		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextWait()
		w.log.Warn("plan watcher stopped; restarting", logx.String("dir", w.dir), logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
