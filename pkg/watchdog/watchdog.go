package watchdog

import (
	"log/slog"
	"time"
)

// Timer is a dead-man timer checked from the control loop. It expires once timeout has
// passed since the last Feed. A zero timeout never expires.
type Timer struct {
	timeout time.Duration
	last    time.Time
	tripped bool
}

func New(timeout time.Duration, now time.Time) *Timer {
	if timeout > 0 {
		slog.Debug("watchdog started", "timeout", timeout, "module", "watchdog")
	}
	return &Timer{timeout: timeout, last: now}
}

func (t *Timer) Feed(now time.Time) {
	if t.tripped {
		slog.Info("watchdog fed again, recovering", "module", "watchdog")
	}
	t.last = now
	t.tripped = false
}

func (t *Timer) Expired(now time.Time) bool {
	if t.timeout <= 0 {
		return false
	}
	if now.Sub(t.last) < t.timeout {
		return false
	}
	if !t.tripped {
		slog.Error("watchdog timeout", "timeout", t.timeout, "since", t.last, "module", "watchdog")
		t.tripped = true
	}
	return true
}
