package uact

import (
	"time"

	"braces.dev/errtrace"

	"github.com/sipware/uact/internal/timeutil"
)

// TimerHandle is an armed one-shot timer.
type TimerHandle interface {
	// Stop cancels the timer. It reports whether the cancellation
	// prevented the callback from running; stopping an already-fired
	// or already-stopped handle is a no-op returning false.
	Stop() bool
	// Left returns the time remaining until expiry, or 0 when the
	// timer is no longer running.
	Left() time.Duration
}

// TimerService schedules delayed one-shot callbacks.
// The service is assumed to run callbacks on its own goroutines,
// concurrently with the caller.
type TimerService interface {
	Schedule(d time.Duration, fn func()) (TimerHandle, error)
}

type systemTimerService struct{}

var sysTimerSvc systemTimerService

// SystemTimerService returns the default [TimerService] backed by the
// runtime timers in [timeutil].
func SystemTimerService() TimerService { return sysTimerSvc }

func (systemTimerService) Schedule(d time.Duration, fn func()) (TimerHandle, error) {
	if d < 0 {
		return nil, errtrace.Wrap(NewSchedulingError("negative duration %v", d))
	}
	if fn == nil {
		return nil, errtrace.Wrap(NewSchedulingError("nil callback"))
	}
	return timeutil.AfterFunc(d, fn), nil
}
