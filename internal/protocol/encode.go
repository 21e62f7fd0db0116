package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"wcp-bridge/server/internal/model"
)

// Event names sent by the server without a preceding command.
const (
	EventWaveformsLoaded = "waveforms_loaded"
	EventGotoDeclaration = "goto_declaration"
)

type greetingMessage struct {
	Type     string   `json:"type"`
	Version  string   `json:"version"`
	Commands []string `json:"commands"`
}

type errorMessage struct {
	Type      string   `json:"type"`
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Arguments []string `json:"arguments"`
}

type idsResponse struct {
	Type    string          `json:"type"`
	Command string          `json:"command"`
	IDs     []model.ItemRef `json:"ids"`
}

type itemInfoResponse struct {
	Type    string           `json:"type"`
	Command string           `json:"command"`
	Results []model.ItemInfo `json:"results"`
}

type waveformsLoadedEvent struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Source string `json:"source"`
}

type gotoDeclarationEvent struct {
	Type     string `json:"type"`
	Event    string `json:"event"`
	Variable string `json:"variable"`
}

var (
	greeting = marshal(greetingMessage{Type: msgTypeGreeting, Version: Version, Commands: Vocabulary()})
	ack      = []byte(`{"type":"response","command":"ack"}`)
)

// marshal panics on failure; every message type above holds only strings, integers,
// booleans and slices of them.
func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: encode %T: %v", v, err))
	}
	return b
}

// Greeting returns the server greeting advertising the full command vocabulary.
func Greeting() []byte {
	return bytes.Clone(greeting)
}

// Ack is the response to commands that carry no result.
func Ack() []byte {
	return bytes.Clone(ack)
}

// ErrorMessage encodes an error message. Arguments keep their order.
func ErrorMessage(kind, message string, arguments []string) []byte {
	if arguments == nil {
		arguments = []string{}
	}
	return marshal(errorMessage{Type: msgTypeError, Error: kind, Message: message, Arguments: arguments})
}

// ErrorFrom encodes err as an error message. A *Error keeps its kind and arguments;
// anything else is reported under fallbackKind.
func ErrorFrom(err error, fallbackKind string) []byte {
	var perr *Error
	if errors.As(err, &perr) {
		return ErrorMessage(string(perr.Kind), perr.Message, perr.Arguments)
	}
	return ErrorMessage(fallbackKind, err.Error(), nil)
}

// ItemListResponse answers get_item_list.
func ItemListResponse(ids []model.ItemRef) []byte {
	return idsMessage(CmdGetItemList.String(), ids)
}

// ItemInfoResponse answers get_item_info; results follow the requested order.
func ItemInfoResponse(items []model.ItemInfo) []byte {
	if items == nil {
		items = []model.ItemInfo{}
	}
	return marshal(itemInfoResponse{Type: msgTypeResponse, Command: CmdGetItemInfo.String(), Results: items})
}

// AddItemsResponse answers add_variables, add_scope, add_items and add_markers with the ids
// of the new items. An empty command name is reported as add_items.
func AddItemsResponse(command string, ids []model.ItemRef) []byte {
	if command == "" {
		command = CmdAddItems.String()
	}
	return idsMessage(command, ids)
}

func idsMessage(command string, ids []model.ItemRef) []byte {
	if ids == nil {
		ids = []model.ItemRef{}
	}
	return marshal(idsResponse{Type: msgTypeResponse, Command: command, IDs: ids})
}

// WaveformsLoadedEvent notifies the client that source finished loading.
func WaveformsLoadedEvent(source string) []byte {
	return marshal(waveformsLoadedEvent{Type: msgTypeEvent, Event: EventWaveformsLoaded, Source: source})
}

// GotoDeclarationEvent asks the client to jump to the declaration of variable.
func GotoDeclarationEvent(variable string) []byte {
	return marshal(gotoDeclarationEvent{Type: msgTypeEvent, Event: EventGotoDeclaration, Variable: variable})
}
