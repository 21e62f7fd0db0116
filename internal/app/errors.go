package app

import (
	"errors"

	"wcp-bridge/server/internal/protocol"
)

// KindCommandFailed is reported when a well-formed command fails on the host.
const KindCommandFailed protocol.Kind = "CommandFailed"

// CommandError is a host-side failure of one command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Command + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrorReply encodes err as a wire error message.
func ErrorReply(err error) []byte {
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return protocol.ErrorMessage(string(KindCommandFailed), cerr.Err.Error(), []string{cerr.Command})
	}
	return protocol.ErrorFrom(err, string(KindCommandFailed))
}

func errorKind(err error) string {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return string(perr.Kind)
	}
	return string(KindCommandFailed)
}
