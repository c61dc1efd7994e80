package uact

import "sync/atomic"

// TransactionStats is a point-in-time snapshot of the counters kept by
// a [StatsRecorder].
type TransactionStats struct {
	// InviteActive is the number of currently registered INVITE
	// client transactions.
	InviteActive uint64 `json:"invite_active"`
	// NonInviteActive is the number of currently registered non-INVITE
	// client transactions.
	NonInviteActive uint64 `json:"non_invite_active"`
	// InviteTotal is the total number of INVITE client transactions created.
	InviteTotal uint64 `json:"invite_total"`
	// NonInviteTotal is the total number of non-INVITE client transactions created.
	NonInviteTotal uint64 `json:"non_invite_total"`
	// Timeouts is the number of transactions that delivered a 408 outcome.
	Timeouts uint64 `json:"timeouts"`
	// Retransmits is the number of successful request retransmissions.
	Retransmits uint64 `json:"retransmits"`
	// RetransmitFailures is the number of retransmissions the transport rejected.
	RetransmitFailures uint64 `json:"retransmit_failures"`
	// Absorbed is the number of absorption windows that ran to completion.
	Absorbed uint64 `json:"absorbed"`
}

// StatsRecorder accumulates transaction counters. All methods are
// safe for concurrent use and safe on a nil receiver, so transactions
// created outside a manager record nothing.
type StatsRecorder struct {
	inviteActive       atomic.Uint64
	nonInviteActive    atomic.Uint64
	inviteTotal        atomic.Uint64
	nonInviteTotal     atomic.Uint64
	timeouts           atomic.Uint64
	retransmits        atomic.Uint64
	retransmitFailures atomic.Uint64
	absorbedWindows    atomic.Uint64
}

// Report returns a snapshot of the counters.
func (s *StatsRecorder) Report() TransactionStats {
	if s == nil {
		return TransactionStats{}
	}
	return TransactionStats{
		InviteActive:       s.inviteActive.Load(),
		NonInviteActive:    s.nonInviteActive.Load(),
		InviteTotal:        s.inviteTotal.Load(),
		NonInviteTotal:     s.nonInviteTotal.Load(),
		Timeouts:           s.timeouts.Load(),
		Retransmits:        s.retransmits.Load(),
		RetransmitFailures: s.retransmitFailures.Load(),
		Absorbed:           s.absorbedWindows.Load(),
	}
}

func (s *StatsRecorder) created(typ TransactionType) {
	if s == nil {
		return
	}
	if typ == TransactionTypeClientInvite {
		s.inviteActive.Add(1)
		s.inviteTotal.Add(1)
	} else {
		s.nonInviteActive.Add(1)
		s.nonInviteTotal.Add(1)
	}
}

func (s *StatsRecorder) unregistered(typ TransactionType) {
	if s == nil {
		return
	}
	if typ == TransactionTypeClientInvite {
		s.inviteActive.Add(^uint64(0))
	} else {
		s.nonInviteActive.Add(^uint64(0))
	}
}

func (s *StatsRecorder) timedOut() {
	if s == nil {
		return
	}
	s.timeouts.Add(1)
}

func (s *StatsRecorder) retransmitted() {
	if s == nil {
		return
	}
	s.retransmits.Add(1)
}

func (s *StatsRecorder) retransmitFailed() {
	if s == nil {
		return
	}
	s.retransmitFailures.Add(1)
}

func (s *StatsRecorder) absorbed() {
	if s == nil {
		return
	}
	s.absorbedWindows.Add(1)
}
