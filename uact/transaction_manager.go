package uact

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"braces.dev/errtrace"

	"github.com/sipware/uact/internal/errorutil"
	"github.com/sipware/uact/internal/syncutil"
	"github.com/sipware/uact/internal/types"
	"github.com/sipware/uact/log"
)

// ClientTransactionHandler handles a client transaction.
type ClientTransactionHandler = func(ctx context.Context, tx *ClientTransaction)

// ManagerOptions contains options for the transaction [Manager].
type ManagerOptions struct {
	// Timings is the SIP timing config applied to transactions that
	// don't carry their own. If zero, the default SIP timing config is used.
	Timings TimingConfig
	// TimerService schedules transaction timers.
	// If nil, [SystemTimerService] is used.
	TimerService TimerService
	// Logger is the logger that will be used with the manager.
	// If nil, the [log.Default] is used.
	Logger *slog.Logger
}

func (o *ManagerOptions) timings() TimingConfig {
	if o == nil {
		return defTimingCfg
	}
	return o.Timings
}

func (o *ManagerOptions) timerSvc() TimerService {
	if o == nil || o.TimerService == nil {
		return SystemTimerService()
	}
	return o.TimerService
}

func (o *ManagerOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Manager owns the registry of in-flight client transactions, keyed by
// [TransactionKey]. Transactions unregister themselves on termination.
type Manager struct {
	txs     syncutil.RWMap[TransactionKey, *ClientTransaction]
	tsvc    TimerService
	timings TimingConfig
	logger  *slog.Logger
	stats   StatsRecorder

	onTx types.CallbackManager[ClientTransactionHandler]

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewManager creates a new transaction manager.
func NewManager(opts *ManagerOptions) *Manager {
	return &Manager{
		tsvc:    opts.timerSvc(),
		timings: opts.timings(),
		logger:  opts.log(),
	}
}

// NewClientTransaction creates a client transaction for the request,
// registers it under its key and notifies the
// [Manager.OnClientTransaction] callbacks. The manager's timing
// config, timer service and logger backfill any options the caller
// left unset.
func (m *Manager) NewClientTransaction(ctx context.Context, req *Request, tp Transport, opts *ClientTransactionOptions) (*ClientTransaction, error) {
	if m.closing.Load() {
		return nil, errtrace.Wrap(ErrManagerClosed)
	}

	var txOpts ClientTransactionOptions
	if opts != nil {
		txOpts = *opts
	}
	if txOpts.Timings.IsZero() {
		txOpts.Timings = m.timings
	}
	if txOpts.TimerService == nil {
		txOpts.TimerService = m.tsvc
	}
	if txOpts.Log == nil {
		txOpts.Log = m.logger
	}

	tx, err := NewClientTransaction(req, tp, &txOpts)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	if _, exists := m.txs.GetOrSet(tx.Key(), tx); exists {
		return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrTransactionExists, "key %q", tx.Key()))
	}
	tx.bind(m)

	m.logger.LogAttrs(ctx, slog.LevelDebug, "client transaction registered",
		slog.Any("transaction", tx))

	for fn := range m.onTx.All() {
		fn(ctx, tx)
	}
	return tx, nil
}

// LoadClientTransaction returns the registered client transaction for
// the key, or [ErrTransactionNotFound].
func (m *Manager) LoadClientTransaction(key TransactionKey) (*ClientTransaction, error) {
	tx, ok := m.txs.Get(key)
	if !ok {
		return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrTransactionNotFound, "key %q", key))
	}
	return tx, nil
}

// Len returns the number of registered client transactions.
func (m *Manager) Len() int {
	return m.txs.Len()
}

// Stats returns a snapshot of the manager's transaction counters.
func (m *Manager) Stats() TransactionStats {
	return m.stats.Report()
}

// OnClientTransaction adds a callback invoked for every client
// transaction registered with the manager. It returns a function that
// removes the callback.
func (m *Manager) OnClientTransaction(fn ClientTransactionHandler) func() {
	return m.onTx.Add(fn)
}

// Close terminates all registered client transactions and rejects
// further transaction creation. It is idempotent.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.closing.Store(true)
		m.closeErr = m.close(ctx)
	})
	return errtrace.Wrap(m.closeErr)
}

func (m *Manager) close(ctx context.Context) error {
	m.logger.LogAttrs(ctx, slog.LevelDebug, "close transaction manager")

	var errs []error
	for _, tx := range m.txs.All() {
		if err := tx.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate client transaction %q: %w", tx.Key(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errtrace.Wrap(errorutil.JoinPrefix("failed to close transaction manager:", errs...))
}

func (m *Manager) unregister(tx *ClientTransaction) {
	m.txs.Del(tx.Key())
	m.stats.unregistered(tx.Type())
	m.logger.LogAttrs(tx.Context(), slog.LevelDebug, "client transaction unregistered",
		slog.Any("transaction", tx))
}
