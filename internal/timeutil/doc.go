// Package timeutil provides a one-shot timer with observable state.
//
// Unlike [time.Timer], a [Timer] can report whether it is still running,
// was stopped before expiry, or has expired, and how much time is left.
// Transaction timers need this to make cancellation decisions race-free:
// Stop reports definitively whether the callback was prevented.
package timeutil
