package uact

import "github.com/sipware/uact/internal/errorutil"

// Error represents a uact error.
// See [errorutil.Error].
type Error = errorutil.Error

// Common errors.
const (
	ErrInvalidArgument  = errorutil.ErrInvalidArgument
	ErrActionNotAllowed Error = "action not allowed"
)

// Transaction errors.
const (
	ErrTransactionNotFound   Error = "transaction not found"
	ErrTransactionExists     Error = "transaction already registered"
	ErrTransactionTerminated Error = "transaction terminated"
	ErrManagerClosed         Error = "transaction manager closed"
)

// ErrTransport is the sentinel for transport send failures.
// It is surfaced only from the initial [ClientTransaction.Send];
// retransmission failures are absorbed by the timeout regime.
const ErrTransport Error = "transport send failed"

// ErrTimerSchedule is the sentinel for timer service scheduling failures.
const ErrTimerSchedule Error = "timer scheduling failed"

// NewInvalidArgumentError creates a new error with [ErrInvalidArgument] or
// wraps provided error with [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return errorutil.NewInvalidArgumentError(args...) //errtrace:skip
}

// NewTransportError creates a new error with [ErrTransport] or
// wraps provided error with [ErrTransport].
func NewTransportError(args ...any) error {
	return errorutil.NewWrapperError(ErrTransport, args...) //errtrace:skip
}

// NewSchedulingError creates a new error with [ErrTimerSchedule] or
// wraps provided error with [ErrTimerSchedule].
func NewSchedulingError(args ...any) error {
	return errorutil.NewWrapperError(ErrTimerSchedule, args...) //errtrace:skip
}
