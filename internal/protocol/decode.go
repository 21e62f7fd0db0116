package protocol

import (
	"encoding/json"
	"math"
	"strconv"

	"wcp-bridge/server/internal/model"
)

// fields is a decoded JSON object whose numbers are kept as json.Number.
//
// Every accessor degrades to the zero value when the key is absent or holds the wrong
// JSON type. Semantic validation belongs to the host application.
type fields map[string]any

func (f fields) str(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f fields) boolean(key string) bool {
	b, _ := f[key].(bool)
	return b
}

func (f fields) int64(key string) int64 {
	return toInt64(f[key])
}

func (f fields) ref(key string) model.ItemRef {
	return toRef(f[key])
}

func (f fields) array(key string) []any {
	a, _ := f[key].([]any)
	return a
}

func toInt64(v any) int64 {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	fl, err := n.Float64()
	if err != nil || math.IsNaN(fl) {
		return 0
	}
	switch {
	case fl >= math.MaxInt64:
		return math.MaxInt64
	case fl <= math.MinInt64:
		return math.MinInt64
	}
	return int64(fl)
}

func toRef(v any) model.ItemRef {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return model.ItemRef(u)
	}
	if i := toInt64(v); i > 0 {
		return model.ItemRef(i)
	}
	return 0
}

func decodeIDs(arr []any) []model.ItemRef {
	ids := make([]model.ItemRef, 0, len(arr))
	for _, v := range arr {
		ids = append(ids, toRef(v))
	}
	return ids
}

func decodeStrings(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

func decodeMarkers(arr []any) []model.Marker {
	markers := make([]model.Marker, 0, len(arr))
	for _, v := range arr {
		obj, _ := v.(map[string]any)
		m := fields(obj)
		markers = append(markers, model.Marker{
			Time:      m.int64("time"),
			Name:      m.str("name"),
			MoveFocus: m.boolean("move_focus"),
		})
	}
	return markers
}

func decodeGetItemList(fields) Payload { return &GetItemList{} }

func decodeGetItemInfo(f fields) Payload {
	return &GetItemInfo{IDs: decodeIDs(f.array("ids"))}
}

func decodeSetItemColor(f fields) Payload {
	return &SetItemColor{ID: f.ref("id"), Color: f.str("color")}
}

func decodeAddVariables(f fields) Payload {
	return &AddVariables{Variables: decodeStrings(f.array("variables"))}
}

func decodeAddScope(f fields) Payload {
	return &AddScope{Scope: f.str("scope"), Recursive: f.boolean("recursive")}
}

func decodeAddItems(f fields) Payload {
	return &AddItems{Items: decodeStrings(f.array("items")), Recursive: f.boolean("recursive")}
}

func decodeAddMarkers(f fields) Payload {
	return &AddMarkers{Markers: decodeMarkers(f.array("markers"))}
}

func decodeRemoveItems(f fields) Payload {
	return &RemoveItems{IDs: decodeIDs(f.array("ids"))}
}

func decodeFocusItem(f fields) Payload {
	return &FocusItem{ID: f.ref("id")}
}

func decodeClear(fields) Payload { return &Clear{} }

func decodeSetViewportTo(f fields) Payload {
	return &SetViewportTo{Timestamp: f.int64("timestamp")}
}

func decodeSetViewportRange(f fields) Payload {
	return &SetViewportRange{Start: f.int64("start"), End: f.int64("end")}
}

func decodeZoomToFit(f fields) Payload {
	idx := f.int64("viewport_idx")
	if idx < 0 || idx > math.MaxInt32 {
		idx = 0
	}
	return &ZoomToFit{ViewportIdx: int(idx)}
}

func decodeLoad(f fields) Payload {
	return &Load{Source: f.str("source")}
}

func decodeReload(fields) Payload { return &Reload{} }

func decodeShutdown(fields) Payload { return &Shutdown{} }
