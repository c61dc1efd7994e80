package uact

import (
	"log/slog"

	"braces.dev/errtrace"
)

// Request is an outgoing SIP request as seen by the transaction layer:
// a method, the branch parameter of its topmost Via header, and the
// pre-serialized wire payload. Serialization happens upstream; the
// transaction hands the payload to the transport verbatim on every
// send and retransmission.
type Request struct {
	method  RequestMethod
	branch  string
	payload []byte
}

// NewRequest creates a request from its method, topmost Via branch and
// pre-serialized payload.
func NewRequest(method RequestMethod, branch string, payload []byte) *Request {
	return &Request{
		method:  method,
		branch:  branch,
		payload: payload,
	}
}

func (r *Request) Method() RequestMethod {
	if r == nil {
		return ""
	}
	return r.method
}

func (r *Request) Branch() string {
	if r == nil {
		return ""
	}
	return r.branch
}

// Payload returns the pre-serialized request bytes.
func (r *Request) Payload() []byte {
	if r == nil {
		return nil
	}
	return r.payload
}

// IsInvite reports whether the request establishes a session.
// INVITE transactions use the longer 64*T1 retransmit ceiling.
func (r *Request) IsInvite() bool {
	return r.Method().Equal(RequestMethodInvite)
}

func (r *Request) Validate() error {
	if r == nil {
		return errtrace.Wrap(NewInvalidArgumentError("nil request"))
	}
	if !r.method.IsValid() {
		return errtrace.Wrap(NewInvalidArgumentError("invalid request method"))
	}
	if r.branch == "" {
		return errtrace.Wrap(NewInvalidArgumentError("missing branch"))
	}
	if len(r.payload) == 0 {
		return errtrace.Wrap(NewInvalidArgumentError("empty request payload"))
	}
	return nil
}

// LogValue implements [slog.LogValuer].
func (r *Request) LogValue() slog.Value {
	if r == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("method", string(r.method)),
		slog.String("branch", r.branch),
		slog.Int("size", len(r.payload)),
	)
}

// Response is an inbound SIP response as seen by the transaction layer.
// The transaction core never parses responses; the type exists for the
// INVITE outcome callback shape, where a nil response accompanies the
// synthetic 408 timeout status.
type Response struct {
	status  ResponseStatus
	payload []byte
}

func NewResponse(status ResponseStatus, payload []byte) *Response {
	return &Response{status: status, payload: payload}
}

func (r *Response) Status() ResponseStatus {
	if r == nil {
		return 0
	}
	return r.status
}

func (r *Response) Payload() []byte {
	if r == nil {
		return nil
	}
	return r.payload
}

// LogValue implements [slog.LogValuer].
func (r *Response) LogValue() slog.Value {
	if r == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Int("status", int(r.status)),
		slog.Int("size", len(r.payload)),
	)
}
