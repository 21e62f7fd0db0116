package protocol

// Kind classifies a message that could not be turned into a Command.
type Kind string

const (
	KindSyntaxError   Kind = "SyntaxError"
	KindTypeError     Kind = "TypeError"
	KindProtocolError Kind = "ProtocolError"
)

// Error is the structured failure returned by Parse. It never accompanies a Command.
type Error struct {
	Kind      Kind
	Message   string
	Arguments []string
	Cause     error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSyntax   = &Error{Kind: KindSyntaxError}
	ErrType     = &Error{Kind: KindTypeError}
	ErrProtocol = &Error{Kind: KindProtocolError}
)

func syntaxError(cause error) *Error {
	return &Error{Kind: KindSyntaxError, Message: cause.Error(), Cause: cause}
}

func typeError(msg string) *Error {
	return &Error{Kind: KindTypeError, Message: msg}
}

func protocolError(msg, arg string) *Error {
	return &Error{Kind: KindProtocolError, Message: msg + ": " + arg, Arguments: []string{arg}}
}
