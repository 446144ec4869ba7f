package core

import (
	"errors"
	"fmt"
)

// Silent faults. These drop the inbound message with a log entry and no
// reply: the origin is either outside the service area, malformed, or not
// trusted enough to be answered.
var (
	ErrOutOfArea          = errors.New("message from outside the service area")
	ErrEmptyMessage       = errors.New("empty message")
	ErrAnonymousForbidden = errors.New("unregistered sender may not run this command")
)

// Fault codes for domain faults. Every domain fault is rendered back to
// the original sender as a one-line system reply.
const (
	FaultUnknownCommand        = "unknown_command"
	FaultBadCommand            = "bad_command"
	FaultInvalidArguments      = "invalid_arguments"
	FaultRestrictedName        = "restricted_name"
	FaultNameInUse             = "name_in_use"
	FaultAlreadyMember         = "already_member"
	FaultAlreadyInvited        = "already_invited"
	FaultNoInvitation          = "no_invitation"
	FaultNotMember             = "not_member"
	FaultNotOperator           = "not_operator"
	FaultNoSuchUser            = "no_such_user"
	FaultNoSuchConversation    = "no_such_conversation"
	FaultNoDefaultConversation = "no_default_conversation"
	FaultUnknownSender         = "unknown_sender"
)

// Fault is a domain fault with a stable code and a sender-facing message.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	return f.Message
}

func faultf(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsFault unwraps a domain fault from err, or returns nil.
func AsFault(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return nil
}
