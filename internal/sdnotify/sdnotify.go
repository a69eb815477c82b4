// Package sdnotify reports service state to systemd when running under it.
// Outside systemd (no NOTIFY_SOCKET) every call is a no-op.
package sdnotify

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "ontime/pkg/logx"
)

type Notifier struct {
	log      logx.Logger
	watchdog time.Duration
	send     func(state string) (bool, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{
		log:  log,
		send: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
	if d, err := daemon.SdWatchdogEnabled(false); err != nil {
		log.Warn("watchdog env invalid", logx.Err(err))
	} else {
		n.watchdog = d
	}
	return n
}

// WatchdogInterval is the WATCHDOG_USEC interval, zero if disabled.
func (n *Notifier) WatchdogInterval() time.Duration { return n.watchdog }

func (n *Notifier) Ready()    { n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Watchdog pings the systemd watchdog when it is enabled.
func (n *Notifier) Watchdog() {
	if n.watchdog <= 0 {
		return
	}
	n.notify(daemon.SdNotifyWatchdog)
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}
