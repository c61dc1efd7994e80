// Package uact implements the SIP UAC (client) transaction layer
// described in RFC 3261 Section 17.1: reliable delivery of a single
// outgoing request over a reliable or unreliable transport, with
// retransmission backoff (Timer A), overall transaction timeout
// (Timer B) and a post-final-response absorption window (Timer K).
//
// The package deliberately stops at the transaction boundary. Message
// parsing and serialization, socket handling and response
// classification belong to the surrounding stack: a [Request] carries
// an opaque pre-serialized payload, a [Transport] writes it, and the
// transaction user drives [ClientTransaction.TimeWait] or
// [ClientTransaction.Terminate] once it has classified a final
// response. The only outcome the transaction itself delivers is a
// 408 Request Timeout when Timer B fires first.
package uact
