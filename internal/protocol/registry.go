package protocol

// Version is the WCP protocol version advertised in the greeting.
const Version = "1"

// CommandType enumerates the commands a client may send.
type CommandType int

const (
	// Unknown is never resolved from a command name. A Command of this type is the
	// greeting sentinel.
	Unknown CommandType = iota

	CmdGetItemList
	CmdGetItemInfo
	CmdSetItemColor
	CmdAddVariables
	CmdAddScope
	CmdAddItems
	CmdAddMarkers
	CmdRemoveItems
	CmdFocusItem
	CmdClear
	CmdSetViewportTo
	CmdSetViewportRange
	CmdZoomToFit
	CmdLoad
	CmdReload
	CmdShutdown
)

type vocabularyEntry struct {
	name   string
	typ    CommandType
	decode func(fields) Payload
}

// vocabulary is the only list of command names. Resolve, the greeting and the payload
// decoders are all derived from it and must not be extended anywhere else.
var vocabulary = [...]vocabularyEntry{
	{"get_item_list", CmdGetItemList, decodeGetItemList},
	{"get_item_info", CmdGetItemInfo, decodeGetItemInfo},
	{"set_item_color", CmdSetItemColor, decodeSetItemColor},
	{"add_variables", CmdAddVariables, decodeAddVariables},
	{"add_scope", CmdAddScope, decodeAddScope},
	{"add_items", CmdAddItems, decodeAddItems},
	{"add_markers", CmdAddMarkers, decodeAddMarkers},
	{"remove_items", CmdRemoveItems, decodeRemoveItems},
	{"focus_item", CmdFocusItem, decodeFocusItem},
	{"clear", CmdClear, decodeClear},
	{"set_viewport_to", CmdSetViewportTo, decodeSetViewportTo},
	{"set_viewport_range", CmdSetViewportRange, decodeSetViewportRange},
	{"zoom_to_fit", CmdZoomToFit, decodeZoomToFit},
	{"load", CmdLoad, decodeLoad},
	{"reload", CmdReload, decodeReload},
	{"shutdown", CmdShutdown, decodeShutdown},
}

var commandsByName = indexVocabulary()

func indexVocabulary() map[string]CommandType {
	m := make(map[string]CommandType, len(vocabulary))
	for _, e := range vocabulary {
		m[e.name] = e.typ
	}
	return m
}

// Resolve maps a command name to its type. Matching is exact; anything else is Unknown.
func Resolve(name string) CommandType {
	if t, ok := commandsByName[name]; ok {
		return t
	}
	return Unknown
}

// Vocabulary returns the supported command names in registry order.
func Vocabulary() []string {
	names := make([]string, len(vocabulary))
	for i, e := range vocabulary {
		names[i] = e.name
	}
	return names
}

// String returns the wire name of the command type.
func (t CommandType) String() string {
	if e, ok := lookup(t); ok {
		return e.name
	}
	return "unknown"
}

func lookup(t CommandType) (vocabularyEntry, bool) {
	i := int(t) - 1
	if i < 0 || i >= len(vocabulary) || vocabulary[i].typ != t {
		return vocabularyEntry{}, false
	}
	return vocabulary[i], true
}
