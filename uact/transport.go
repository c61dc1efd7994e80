package uact

import "context"

// Transport sends pre-serialized SIP messages towards the peer.
// Implementations live in the surrounding stack; the transaction layer
// only needs to hand bytes over and to know whether the transport
// guarantees delivery.
type Transport interface {
	// Send writes the payload to the peer.
	Send(ctx context.Context, payload []byte) error
	// Reliable reports whether the transport guarantees delivery.
	// Reliable transports (TCP, TLS) disable request retransmission.
	Reliable() bool
}
