package model

// ItemRef identifies a displayed item (signal, scope, marker) inside one viewer session.
// The protocol layer carries the value without interpreting it.
type ItemRef uint64

// ItemKind is the type tag reported for a displayed item.
type ItemKind string

const (
	KindVariable ItemKind = "variable"
	KindScope    ItemKind = "scope"
	KindMarker   ItemKind = "marker"
)

// ItemInfo describes one displayed item, as reported by get_item_info.
type ItemInfo struct {
	Name string   `json:"name"`
	Type ItemKind `json:"type"`
	ID   ItemRef  `json:"id"`
}

// Marker is a timestamp marker requested through add_markers.
type Marker struct {
	Time      int64  `json:"time"`
	Name      string `json:"name"`
	MoveFocus bool   `json:"move_focus"`
}

// Viewport is the visible time range of the waveform display.
type Viewport struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}
