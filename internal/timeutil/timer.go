package timeutil

import (
	"sync"
	"time"
)

// TimerState represents the current state of a timer.
type TimerState string

const (
	// TimerStateRunning indicates the timer is currently running.
	TimerStateRunning TimerState = "running"
	// TimerStateStopped indicates the timer was stopped before expiration.
	TimerStateStopped TimerState = "stopped"
	// TimerStateExpired indicates the timer has expired.
	TimerStateExpired TimerState = "expired"
)

// Timer is a one-shot timer that runs a callback on expiry and exposes
// its state. All methods are safe for concurrent use.
type Timer struct {
	mu        sync.Mutex
	startTime time.Time
	duration  time.Duration
	state     TimerState
	stopTime  time.Time

	callback  func()
	realTimer *time.Timer
}

// AfterFunc creates a started Timer that calls f after duration elapses.
// Like [time.AfterFunc], f runs in its own goroutine.
func AfterFunc(duration time.Duration, f func()) *Timer {
	t := &Timer{
		startTime: time.Now(),
		duration:  duration,
		state:     TimerStateRunning,
		callback:  f,
	}
	t.realTimer = time.AfterFunc(duration, t.expire)
	return t
}

func (t *Timer) expire() {
	t.mu.Lock()
	if t.state != TimerStateRunning {
		t.mu.Unlock()
		return
	}
	t.state = TimerStateExpired
	t.stopTime = time.Now()
	callback := t.callback
	t.callback = nil
	t.realTimer = nil
	t.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Stop cancels the timer. It reports whether the cancellation prevented
// the callback from running: false means the timer already expired or
// was stopped before. Stopping an already-finished timer is a no-op.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerStateRunning {
		return false
	}

	t.state = TimerStateStopped
	t.stopTime = time.Now()
	t.callback = nil
	if t.realTimer != nil {
		t.realTimer.Stop()
		t.realTimer = nil
	}
	return true
}

// State returns the current timer state.
func (t *Timer) State() TimerState {
	if t == nil {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns the duration the timer was armed with.
func (t *Timer) Duration() time.Duration {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Elapsed returns the time the timer has been running.
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerStateRunning {
		return time.Since(t.startTime)
	}
	return t.stopTime.Sub(t.startTime)
}

// Left returns the time remaining until expiry, or 0 if the timer
// is stopped or expired.
func (t *Timer) Left() time.Duration {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerStateRunning {
		return 0
	}
	left := t.duration - time.Since(t.startTime)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the timer has expired.
func (t *Timer) Expired() bool {
	return t.State() == TimerStateExpired
}
