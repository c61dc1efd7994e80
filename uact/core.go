package uact

import (
	"strings"

	"github.com/google/uuid"
)

// RequestMethod is a SIP request method.
type RequestMethod string

const (
	RequestMethodAck       RequestMethod = "ACK"
	RequestMethodBye       RequestMethod = "BYE"
	RequestMethodCancel    RequestMethod = "CANCEL"
	RequestMethodInfo      RequestMethod = "INFO"
	RequestMethodInvite    RequestMethod = "INVITE"
	RequestMethodMessage   RequestMethod = "MESSAGE"
	RequestMethodNotify    RequestMethod = "NOTIFY"
	RequestMethodOptions   RequestMethod = "OPTIONS"
	RequestMethodRegister  RequestMethod = "REGISTER"
	RequestMethodSubscribe RequestMethod = "SUBSCRIBE"
	RequestMethodUpdate    RequestMethod = "UPDATE"
)

func (m RequestMethod) IsValid() bool { return m != "" }

func (m RequestMethod) Equal(val any) bool {
	var other RequestMethod
	switch v := val.(type) {
	case RequestMethod:
		other = v
	case *RequestMethod:
		if v == nil {
			return false
		}
		other = *v
	default:
		return false
	}
	return strings.EqualFold(string(m), string(other))
}

// ResponseStatus is a SIP response status code.
type ResponseStatus int

const (
	ResponseStatusTrying  ResponseStatus = 100
	ResponseStatusRinging ResponseStatus = 180

	ResponseStatusOK ResponseStatus = 200

	ResponseStatusBadRequest                  ResponseStatus = 400
	ResponseStatusRequestTimeout              ResponseStatus = 408
	ResponseStatusCallTransactionDoesNotExist ResponseStatus = 481

	ResponseStatusServerInternalError ResponseStatus = 500
	ResponseStatusServiceUnavailable  ResponseStatus = 503

	ResponseStatusDecline ResponseStatus = 603
)

func (s ResponseStatus) IsProvisional() bool { return s >= 100 && s < 200 }

func (s ResponseStatus) IsSuccessful() bool { return s >= 200 && s < 300 }

func (s ResponseStatus) IsFinal() bool { return s >= 200 && s <= 699 }

func (s ResponseStatus) IsValid() bool { return s >= 100 && s <= 699 }

// MagicCookie is the RFC 3261 branch prefix marking a branch parameter
// as generated by a compliant implementation.
const MagicCookie = "z9hG4bK"

// GenerateBranch returns a unique RFC 3261 branch ID.
func GenerateBranch() string {
	return MagicCookie + "." + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsRFC3261Branch reports whether the branch carries the RFC 3261 magic cookie.
func IsRFC3261Branch(branch string) bool {
	return strings.HasPrefix(branch, MagicCookie)
}
