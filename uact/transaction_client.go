package uact

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"braces.dev/errtrace"

	"github.com/sipware/uact/internal/errorutil"
	"github.com/sipware/uact/log"
)

// InviteOutcomeHandler is the outcome callback shape bound to INVITE
// transactions. res is nil for the synthetic 408 timeout outcome.
type InviteOutcomeHandler = func(ctx context.Context, tx *ClientTransaction, res *Response, status ResponseStatus)

// ReplyOutcomeHandler is the outcome callback shape bound to non-INVITE
// transactions.
type ReplyOutcomeHandler = func(ctx context.Context, tx *ClientTransaction, status ResponseStatus)

// ClientTransactionOptions contains options for a client transaction.
type ClientTransactionOptions struct {
	// Key is the transaction key. If zero, the key is filled from the request.
	Key TransactionKey
	// Timings is the SIP timing config.
	// If zero, the default SIP timing config is used.
	Timings TimingConfig
	// TimerService schedules the transaction timers.
	// If nil, [SystemTimerService] is used.
	TimerService TimerService
	// OnInviteOutcome is the outcome handler for INVITE transactions.
	// Exactly one of OnInviteOutcome/OnReplyOutcome must be set,
	// matching the request method.
	OnInviteOutcome InviteOutcomeHandler
	// OnReplyOutcome is the outcome handler for non-INVITE transactions.
	OnReplyOutcome ReplyOutcomeHandler
	// Log is the logger that will be used with the transaction.
	// If nil, the [log.Default] is used.
	Log *slog.Logger
}

func (o *ClientTransactionOptions) key() TransactionKey {
	if o == nil {
		return zeroTxKey
	}
	return o.Key
}

func (o *ClientTransactionOptions) timings() TimingConfig {
	if o == nil {
		return defTimingCfg
	}
	return o.Timings
}

func (o *ClientTransactionOptions) timerSvc() TimerService {
	if o == nil || o.TimerService == nil {
		return SystemTimerService()
	}
	return o.TimerService
}

func (o *ClientTransactionOptions) log() *slog.Logger {
	if o == nil || o.Log == nil {
		return log.Default()
	}
	return o.Log
}

// ClientTransaction reliably delivers a single outgoing request:
// it retransmits over unreliable transports with exponential backoff
// capped at the method-dependent ceiling, delivers a 408 outcome when
// the overall timeout (Timer B) fires first, and holds an absorption
// window (Timer K) after the upstream handler classified a final
// response via [ClientTransaction.TimeWait].
//
// The three timer handles and the retry counter are guarded by the
// transaction's own lock; transport I/O and teardown run outside it.
// A reference count tracks the creator plus every pending timer
// callback, so the transaction outlives any in-flight callback.
type ClientTransaction struct {
	*transact

	key     TransactionKey
	tp      Transport
	tsvc    TimerService
	timings TimingConfig
	req     *Request
	wire    []byte
	ceiling time.Duration

	onInvite InviteOutcomeHandler
	onReply  ReplyOutcomeHandler

	mgr   atomic.Pointer[Manager]
	stats *StatsRecorder

	refs        atomic.Int32
	destroyOnce sync.Once

	mu            sync.Mutex
	tmrRetransmit TimerHandle
	tmrTimeout    TimerHandle
	tmrAbsorb     TimerHandle
	retries       int
}

// NewClientTransaction creates a client transaction in the calling
// state. The request must carry a valid method, branch and payload;
// exactly one outcome handler matching the request method must be set.
// The transaction is not registered with a manager; use
// [Manager.NewClientTransaction] for that.
func NewClientTransaction(req *Request, tp Transport, opts *ClientTransactionOptions) (*ClientTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if tp == nil {
		return nil, errtrace.Wrap(NewInvalidArgumentError("invalid transport"))
	}

	key := opts.key()
	if !key.IsValid() {
		key.FillFromRequest(req)
	}

	tx := &ClientTransaction{
		key:      key,
		tp:       tp,
		tsvc:     opts.timerSvc(),
		timings:  opts.timings(),
		req:      req,
		wire:     req.Payload(),
		onInvite: opts.inviteOutcome(),
		onReply:  opts.replyOutcome(),
		retries:  1,
	}

	typ := TransactionTypeClientNonInvite
	if req.IsInvite() {
		typ = TransactionTypeClientInvite
		if tx.onInvite == nil {
			return nil, errtrace.Wrap(NewInvalidArgumentError("missing INVITE outcome handler"))
		}
		if tx.onReply != nil {
			return nil, errtrace.Wrap(NewInvalidArgumentError("INVITE transaction binds the INVITE outcome handler only"))
		}
	} else {
		if tx.onReply == nil {
			return nil, errtrace.Wrap(NewInvalidArgumentError("missing reply outcome handler"))
		}
		if tx.onInvite != nil {
			return nil, errtrace.Wrap(NewInvalidArgumentError("non-INVITE transaction binds the reply outcome handler only"))
		}
	}

	tx.ceiling = tx.timings.RetransmitCeiling(req.Method())
	tx.refs.Store(1)

	ctx := ContextWithTransaction(context.Background(), tx)
	tx.transact = newTransact(ctx, typ, opts.log())
	tx.initFSM(TransactionStateCalling)
	return tx, nil
}

func (o *ClientTransactionOptions) inviteOutcome() InviteOutcomeHandler {
	if o == nil {
		return nil
	}
	return o.OnInviteOutcome
}

func (o *ClientTransactionOptions) replyOutcome() ReplyOutcomeHandler {
	if o == nil {
		return nil
	}
	return o.OnReplyOutcome
}

// FSM events driving the client transaction.
const (
	txEvtTimerRetransmit = "timer_retransmit"
	txEvtTimerTimeout    = "timer_timeout"
	txEvtTimerAbsorb     = "timer_absorb"
	txEvtFinalRes        = "final_response"
)

func (tx *ClientTransaction) initFSM(start TransactionState) {
	tx.transact.initFSM(start)

	tx.fsm.SetTriggerParameters(txEvtFinalRes, reflect.TypeOf(time.Duration(0)))

	tx.fsm.Configure(TransactionStateCalling).
		InternalTransition(txEvtTimerRetransmit, tx.actResendReq).
		Permit(txEvtFinalRes, TransactionStateCompleted).
		Permit(txEvtTimerTimeout, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	tx.fsm.Configure(TransactionStateCompleted).
		OnEntryFrom(txEvtFinalRes, tx.actCompleted).
		InternalTransition(txEvtFinalRes, tx.actCompleted).
		InternalTransition(txEvtTimerRetransmit, tx.actNoop).
		InternalTransition(txEvtTimerTimeout, tx.actNoop).
		Permit(txEvtTimerAbsorb, TransactionStateTerminated).
		Permit(txEvtTerminate, TransactionStateTerminated)

	// The 408 outcome action is registered before the teardown action:
	// the transaction user is notified while the transaction is still
	// registered and inspectable.
	tx.fsm.Configure(TransactionStateTerminated).
		OnEntryFrom(txEvtTimerTimeout, tx.actTimedOut).
		OnEntry(tx.actTerminated).
		InternalTransition(txEvtTerminate, tx.actNoop).
		InternalTransition(txEvtTimerRetransmit, tx.actNoop).
		InternalTransition(txEvtTimerTimeout, tx.actNoop).
		InternalTransition(txEvtTimerAbsorb, tx.actNoop)
}

// LogValue implements [slog.LogValuer].
func (tx *ClientTransaction) LogValue() slog.Value {
	if tx == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Any("key", tx.key),
		slog.Any("type", string(tx.typ)),
		slog.Any("state", string(tx.State())),
	)
}

// Key returns the transaction key.
func (tx *ClientTransaction) Key() TransactionKey {
	if tx == nil {
		return zeroTxKey
	}
	return tx.key
}

// Request returns the request that created the transaction.
func (tx *ClientTransaction) Request() *Request {
	if tx == nil {
		return nil
	}
	return tx.req
}

// Timings returns the timing config used by the transaction.
func (tx *ClientTransaction) Timings() TimingConfig {
	if tx == nil {
		return defTimingCfg
	}
	return tx.timings
}

// Send hands the pre-serialized request to the transport. On success
// it resets the retry counter, arms the overall timeout (Timer B,
// 64*T1) and, on unreliable transports only, the retransmit timer
// (Timer A, T1).
//
// A transport failure is returned to the caller wrapped in
// [ErrTransport], with no timers armed; no synthetic 503 outcome is
// delivered through the handler. A timer scheduling failure is
// returned wrapped in [ErrTimerSchedule], also with no timers left
// armed.
func (tx *ClientTransaction) Send(ctx context.Context) error {
	if st := tx.State(); st != TransactionStateCalling {
		return errtrace.Wrap(errorutil.NewWrapperError(ErrActionNotAllowed, "send in state %q", st))
	}

	tx.log.LogAttrs(ctx, slog.LevelDebug, "send request",
		slog.Any("transaction", tx), slog.Any("request", tx.req))

	if err := tx.tp.Send(ctx, tx.wire); err != nil {
		return errtrace.Wrap(NewTransportError(err))
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.State() != TransactionStateCalling {
		// terminated while the transport send was in flight
		return errtrace.Wrap(ErrTransactionTerminated)
	}

	// a fresh send sequence replaces any previously armed timers
	tx.stopTimerLocked(&tx.tmrRetransmit)
	tx.stopTimerLocked(&tx.tmrTimeout)
	tx.retries = 1

	if err := tx.armTimerLocked(&tx.tmrTimeout, tx.timings.TimeB(), tx.onTimeoutTimer); err != nil {
		return errtrace.Wrap(err)
	}
	if !tx.tp.Reliable() {
		if err := tx.armTimerLocked(&tx.tmrRetransmit, tx.timings.TimeA(), tx.onRetransmitTimer); err != nil {
			tx.stopTimerLocked(&tx.tmrTimeout)
			return errtrace.Wrap(err)
		}
	}
	return nil
}

// TimeWait holds the transaction alive for an absorption window of d
// (Timer K) so that retransmitted final responses on unreliable
// transports are matched to this transaction and silently discarded.
// The transaction user calls it once it has classified a final
// response; the retransmit and overall-timeout timers are cancelled
// and the transaction moves to the completed state. When the window
// expires the transaction terminates without invoking the outcome
// handler.
//
// A scheduling failure is returned wrapped in [ErrTimerSchedule]; the
// caller should Terminate the transaction in that case.
func (tx *ClientTransaction) TimeWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return errtrace.Wrap(NewInvalidArgumentError("non-positive absorption window %v", d))
	}
	if tx.State() == TransactionStateTerminated {
		return errtrace.Wrap(ErrTransactionTerminated)
	}
	return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtFinalRes, d))
}

// Terminate moves the transaction to the terminated state: all timers
// are disarmed, the transaction is unregistered from its manager and
// the outcome handler is not invoked. It is idempotent.
func (tx *ClientTransaction) Terminate(ctx context.Context) error {
	return errtrace.Wrap(tx.fsm.FireCtx(ctx, txEvtTerminate))
}

func (tx *ClientTransaction) actResendReq(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "retransmit request",
		slog.Any("transaction", tx), slog.Any("request", tx.req))

	if err := tx.tp.Send(ctx, tx.wire); err != nil {
		// Retransmission failures are swallowed: the overall timeout
		// (Timer B) is the backstop for persistent transport failure.
		tx.stats.retransmitFailed()
		tx.log.LogAttrs(ctx, slog.LevelWarn, "retransmission failed",
			slog.Any("transaction", tx), slog.Any("error", err))
		return nil
	}
	tx.stats.retransmitted()
	return nil
}

func (tx *ClientTransaction) actCompleted(ctx context.Context, args ...any) error {
	d := args[0].(time.Duration) //nolint:forcetypeassert

	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction completed",
		slog.Any("transaction", tx), slog.Duration("absorption_window", d))

	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.stopTimerLocked(&tx.tmrRetransmit)
	tx.stopTimerLocked(&tx.tmrTimeout)
	tx.stopTimerLocked(&tx.tmrAbsorb)
	return errtrace.Wrap(tx.armTimerLocked(&tx.tmrAbsorb, d, tx.onAbsorptionTimer))
}

func (tx *ClientTransaction) actTimedOut(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelWarn, "transaction timed out", slog.Any("transaction", tx))

	tx.stats.timedOut()

	switch {
	case tx.onInvite != nil:
		tx.onInvite(ctx, tx, nil, ResponseStatusRequestTimeout)
	case tx.onReply != nil:
		tx.onReply(ctx, tx, ResponseStatusRequestTimeout)
	}
	return nil
}

func (tx *ClientTransaction) actTerminated(ctx context.Context, _ ...any) error {
	tx.log.LogAttrs(ctx, slog.LevelDebug, "transaction terminated", slog.Any("transaction", tx))

	tx.mu.Lock()
	tx.stopTimerLocked(&tx.tmrRetransmit)
	tx.stopTimerLocked(&tx.tmrTimeout)
	tx.stopTimerLocked(&tx.tmrAbsorb)
	tx.mu.Unlock()

	// Unregistration and the final reference drop happen outside the
	// timer lock; a concurrently running timer callback for this
	// transaction may be blocked on it.
	tx.destroy()
	return nil
}

func (tx *ClientTransaction) onRetransmitTimer() {
	defer tx.release()

	ctx := tx.ctx
	tx.log.LogAttrs(ctx, slog.LevelDebug, "retransmit timer expired", slog.Any("transaction", tx))

	if tx.State() != TransactionStateCalling {
		return
	}

	if err := tx.fsm.FireCtx(ctx, txEvtTimerRetransmit); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerRetransmit, tx.State(), err))
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.tmrRetransmit == nil {
		// cancelled while the resend was in flight
		return
	}
	tx.tmrRetransmit = nil
	tx.retries++

	d := tx.timings.RetransmitInterval(tx.retries, tx.ceiling)
	if err := tx.armTimerLocked(&tx.tmrRetransmit, d, tx.onRetransmitTimer); err != nil {
		// Timer B still bounds the transaction lifetime.
		tx.log.LogAttrs(ctx, slog.LevelWarn, "failed to re-arm retransmit timer",
			slog.Any("transaction", tx), slog.Any("error", err))
		return
	}

	tx.log.LogAttrs(ctx, slog.LevelDebug, "retransmit timer re-armed",
		slog.Any("transaction", tx),
		slog.Time("expires_at", time.Now().Add(d)),
	)
}

func (tx *ClientTransaction) onTimeoutTimer() {
	defer tx.release()

	tx.log.LogAttrs(tx.ctx, slog.LevelDebug, "timeout timer expired", slog.Any("transaction", tx))

	tx.mu.Lock()
	tx.tmrTimeout = nil
	tx.mu.Unlock()

	if tx.State() != TransactionStateCalling {
		return
	}

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerTimeout); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerTimeout, tx.State(), err))
	}
}

func (tx *ClientTransaction) onAbsorptionTimer() {
	defer tx.release()

	tx.log.LogAttrs(tx.ctx, slog.LevelDebug, "absorption timer expired", slog.Any("transaction", tx))

	tx.mu.Lock()
	tx.tmrAbsorb = nil
	tx.mu.Unlock()

	if tx.State() != TransactionStateCompleted {
		return
	}

	tx.stats.absorbed()

	if err := tx.fsm.FireCtx(tx.ctx, txEvtTimerAbsorb); err != nil {
		panic(fmt.Errorf("fire %q in state %q: %w", txEvtTimerAbsorb, tx.State(), err))
	}
}

// armTimerLocked schedules fn after d and stores the handle in slot.
// The pending callback holds its own reference on the transaction.
// Caller must hold tx.mu.
func (tx *ClientTransaction) armTimerLocked(slot *TimerHandle, d time.Duration, fn func()) error {
	tx.addRef()
	tmr, err := tx.tsvc.Schedule(d, fn)
	if err != nil {
		tx.release()
		return errtrace.Wrap(NewSchedulingError(err))
	}
	*slot = tmr
	return nil
}

// stopTimerLocked cancels the timer in slot and clears the handle.
// When the cancellation prevented the callback, the callback's
// reference is dropped here; otherwise the running callback drops it
// itself. Caller must hold tx.mu.
func (tx *ClientTransaction) stopTimerLocked(slot *TimerHandle) {
	tmr := *slot
	if tmr == nil {
		return
	}
	*slot = nil
	if tmr.Stop() {
		tx.release()
	}
}

// destroy unregisters the transaction from its manager and drops the
// creation reference. All timers must already be cancelled.
func (tx *ClientTransaction) destroy() {
	tx.destroyOnce.Do(func() {
		if m := tx.mgr.Swap(nil); m != nil {
			m.unregister(tx)
		}
		tx.release()
	})
}

func (tx *ClientTransaction) addRef() {
	tx.refs.Add(1)
}

// release drops one reference. Dropping the last reference is only
// legal once all timers are disarmed and the transaction is
// unregistered; a violation is a lifetime bug, not a runtime
// condition, and panics.
func (tx *ClientTransaction) release() {
	n := tx.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("uact: client transaction over-released")
	}

	tx.mu.Lock()
	armed := tx.tmrRetransmit != nil || tx.tmrTimeout != nil || tx.tmrAbsorb != nil
	tx.mu.Unlock()
	if armed {
		panic("uact: client transaction freed with armed timers")
	}
	if tx.mgr.Load() != nil {
		panic("uact: client transaction freed while registered")
	}

	tx.closeDone()
}

func (tx *ClientTransaction) bind(m *Manager) {
	tx.mgr.Store(m)
	tx.stats = &m.stats
	m.stats.created(tx.typ)
}

// TransactionKey identifies a client transaction: the branch parameter
// of the request's topmost Via header plus the request method.
// Responses are matched to the transaction under this key by the
// surrounding stack.
type TransactionKey struct {
	Branch string `json:"branch"`
	Method string `json:"method"`
}

var zeroTxKey TransactionKey

// FillFromRequest populates the key fields from the request.
func (k *TransactionKey) FillFromRequest(req *Request) {
	k.Branch = req.Branch()
	k.Method = strings.ToUpper(string(req.Method()))
}

// Equal checks whether the key is equal to another key.
func (k TransactionKey) Equal(val any) bool {
	var other TransactionKey
	switch v := val.(type) {
	case TransactionKey:
		other = v
	case *TransactionKey:
		if v == nil {
			return false
		}
		other = *v
	default:
		return false
	}
	return k.Branch == other.Branch && strings.EqualFold(k.Method, other.Method)
}

// IsValid checks whether the key is valid.
func (k TransactionKey) IsValid() bool {
	return k.Branch != "" && k.Method != ""
}

// IsZero checks whether the key is zero.
func (k TransactionKey) IsZero() bool {
	return k.Branch == "" && k.Method == ""
}

func (k TransactionKey) String() string {
	return k.Branch + ":" + strings.ToUpper(k.Method)
}

// LogValue implements [slog.LogValuer].
func (k TransactionKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("branch", k.Branch),
		slog.String("method", k.Method),
	)
}
