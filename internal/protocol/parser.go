package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"
)

const (
	msgTypeGreeting = "greeting"
	msgTypeCommand  = "command"
	msgTypeResponse = "response"
	msgTypeEvent    = "event"
	msgTypeError    = "error"
)

// Parse decodes one complete WCP message.
//
// A greeting yields the sentinel Command (see Command.IsGreeting) and never fails. Any other
// failure is a *Error of kind SyntaxError, TypeError or ProtocolError. Fields a command expects
// but which are missing or mistyped decode to their zero value.
func Parse(data []byte) (Command, error) {
	root, err := decodeDocument(data)
	if err != nil {
		return Command{}, syntaxError(err)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return Command{}, typeError("must be a JSON object")
	}
	msg := fields(obj)

	msgType, ok := msg["type"].(string)
	if ok && msgType == msgTypeGreeting {
		return Command{Type: Unknown}, nil
	}
	if !ok || msgType != msgTypeCommand {
		return Command{}, protocolError("unknown message type", nameOrNull(msg["type"]))
	}

	name, _ := msg["command"].(string)
	entry, found := lookup(Resolve(name))
	if !found {
		return Command{}, protocolError("unknown command", nameOrNull(msg["command"]))
	}

	return Command{Type: entry.typ, Payload: entry.decode(msg)}, nil
}

var errInvalidUTF8 = errors.New("invalid UTF-8 in message")

func decodeDocument(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, errInvalidUTF8
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return root, nil
}

func nameOrNull(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "null"
}
