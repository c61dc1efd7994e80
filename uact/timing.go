package uact

import "time"

// Default values for SIP timers as described in RFC 3261.
const (
	// T1 is the message RTT estimate.
	T1 = 500 * time.Millisecond
	// T2 is the maximum retransmit interval for non-INVITE requests.
	T2 = 4 * time.Second
	// T4 is the maximum duration a message will remain in the network.
	T4 = 5 * time.Second
)

// TimingConfig represents SIP timing config.
// Zero value uses default base values [T1], [T2], [T4].
// All other timings are calculated from these base values.
type TimingConfig struct {
	t1, t2, t4 time.Duration
}

var defTimingCfg TimingConfig

// NewTimings creates a new SIP timing config with specified base values.
// Zero values fall back to the RFC 3261 defaults.
func NewTimings(t1, t2, t4 time.Duration) TimingConfig {
	return TimingConfig{t1, t2, t4}
}

// T1 is the message RTT estimate.
// It is equal to [T1] if not specified.
func (c TimingConfig) T1() time.Duration {
	if c.t1 == 0 {
		return T1
	}
	return c.t1
}

// T2 is the maximum retransmit interval for non-INVITE requests.
// It is equal to [T2] if not specified.
func (c TimingConfig) T2() time.Duration {
	if c.t2 == 0 {
		return T2
	}
	return c.t2
}

// T4 is the maximum duration a message will remain in the network.
// It is equal to [T4] if not specified.
func (c TimingConfig) T4() time.Duration {
	if c.t4 == 0 {
		return T4
	}
	return c.t4
}

// TimeA returns the initial request retransmit interval for unreliable transport.
// It is equal to [TimingConfig.T1].
func (c TimingConfig) TimeA() time.Duration { return c.T1() }

// TimeB returns the overall client transaction timeout.
// It is equal to 64*[TimingConfig.T1].
func (c TimingConfig) TimeB() time.Duration { return 64 * c.T1() }

// TimeK returns the default wait duration for final response retransmits
// via unreliable transport. It is equal to [TimingConfig.T4].
func (c TimingConfig) TimeK() time.Duration { return c.T4() }

// RetransmitCeiling returns the upper bound for retransmit interval
// growth: 64*T1 for INVITE requests, T2 otherwise.
func (c TimingConfig) RetransmitCeiling(method RequestMethod) time.Duration {
	if method.Equal(RequestMethodInvite) {
		return 64 * c.T1()
	}
	return c.T2()
}

// RetransmitInterval returns the delay before the next retransmission
// given the number of retransmissions issued so far: T1*2^(retries-1),
// capped at ceiling.
func (c TimingConfig) RetransmitInterval(retries int, ceiling time.Duration) time.Duration {
	d := c.T1()
	for i := 1; i < retries && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}

func (c TimingConfig) IsZero() bool {
	return c.t1 == 0 && c.t2 == 0 && c.t4 == 0
}
