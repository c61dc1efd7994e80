package uact

import (
	"context"
	"log/slog"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/sipware/uact/internal/types"
)

// TransactionType discriminates client transaction flavors.
type TransactionType string

const (
	TransactionTypeClientInvite    TransactionType = "client_invite"
	TransactionTypeClientNonInvite TransactionType = "client_non_invite"
)

// TransactionState is a coarse transaction lifecycle phase.
type TransactionState string

const (
	// TransactionStateCalling is the initial state: the request has been
	// handed to the transaction, retransmission and overall-timeout
	// timers may be armed.
	TransactionStateCalling TransactionState = "calling"
	// TransactionStateCompleted is the absorption window entered via
	// [ClientTransaction.TimeWait] after a final response was classified
	// upstream; only the absorption timer is armed.
	TransactionStateCompleted TransactionState = "completed"
	// TransactionStateTerminated is the final state: all timers
	// disarmed, unregistered from the owning manager.
	TransactionStateTerminated TransactionState = "terminated"
)

// TransactionStateHandler is called on every state transition.
type TransactionStateHandler = func(ctx context.Context, from, to TransactionState)

// Transaction is the common transaction surface.
type Transaction interface {
	Type() TransactionType
	State() TransactionState
	// Terminate moves the transaction to the terminated state,
	// disarming all timers and unregistering it from its manager.
	// It is idempotent and never invokes the outcome callback.
	Terminate(ctx context.Context) error
	// Done is closed once the transaction has fully torn down:
	// terminated, unregistered and with no in-flight timer callbacks.
	Done() <-chan struct{}
}

const transactCtxKey types.ContextKey = "uact_transaction"

// ContextWithTransaction returns a context carrying the transaction.
func ContextWithTransaction(ctx context.Context, tx *ClientTransaction) context.Context {
	return context.WithValue(ctx, transactCtxKey, tx)
}

// TransactionFromContext retrieves a transaction stored by
// [ContextWithTransaction].
func TransactionFromContext(ctx context.Context) (*ClientTransaction, bool) {
	tx, ok := ctx.Value(transactCtxKey).(*ClientTransaction)
	return tx, ok
}

// Common FSM events.
const (
	txEvtTerminate = "terminate"
)

// transact is the state machine base shared by transaction flavors.
type transact struct {
	typ TransactionType
	fsm *stateless.StateMachine
	ctx context.Context
	log *slog.Logger

	onState types.CallbackManager[TransactionStateHandler]

	done     chan struct{}
	doneOnce sync.Once
}

func newTransact(ctx context.Context, typ TransactionType, log *slog.Logger) *transact {
	return &transact{
		typ:  typ,
		ctx:  ctx,
		log:  log,
		done: make(chan struct{}),
	}
}

func (tx *transact) initFSM(start TransactionState) {
	tx.fsm = stateless.NewStateMachine(start)
	tx.fsm.OnTransitioned(func(ctx context.Context, tr stateless.Transition) {
		from, _ := tr.Source.(TransactionState)
		to, _ := tr.Destination.(TransactionState)
		if from == to {
			return
		}

		tx.log.LogAttrs(ctx, slog.LevelDebug,
			"transaction state changed",
			slog.Any("from", string(from)),
			slog.Any("to", string(to)),
		)

		for fn := range tx.onState.All() {
			fn(ctx, from, to)
		}
	})
}

// Type returns the transaction type.
func (tx *transact) Type() TransactionType {
	if tx == nil {
		return ""
	}
	return tx.typ
}

// State returns the current transaction state.
func (tx *transact) State() TransactionState {
	if tx == nil || tx.fsm == nil {
		return ""
	}
	st, _ := tx.fsm.MustState().(TransactionState)
	return st
}

// Context returns the transaction's own context, carrying the
// transaction value. Timer callbacks run with this context.
func (tx *transact) Context() context.Context {
	if tx == nil {
		return context.Background()
	}
	return tx.ctx
}

// Done is closed once the transaction has fully torn down.
func (tx *transact) Done() <-chan struct{} {
	return tx.done
}

// OnStateChanged registers a callback invoked on every state
// transition. The returned function unbinds the callback.
func (tx *transact) OnStateChanged(fn TransactionStateHandler) (unbind func()) {
	return tx.onState.Add(fn)
}

func (tx *transact) closeDone() {
	tx.doneOnce.Do(func() { close(tx.done) })
}

//nolint:unparam
func (tx *transact) actNoop(context.Context, ...any) error { return nil }
