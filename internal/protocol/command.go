package protocol

import (
	"fmt"

	"wcp-bridge/server/internal/model"
)

// Command is one decoded client command. The dynamic type of Payload always matches Type.
// The greeting sentinel has Type Unknown and a nil Payload.
type Command struct {
	Type    CommandType
	Payload Payload
}

// Payload is implemented by one struct per command type.
type Payload interface {
	CommandType() CommandType
	payload()
}

type GetItemList struct{}

type GetItemInfo struct {
	IDs []model.ItemRef
}

type SetItemColor struct {
	ID    model.ItemRef
	Color string
}

type AddVariables struct {
	Variables []string
}

type AddScope struct {
	Scope     string
	Recursive bool
}

type AddItems struct {
	Items     []string
	Recursive bool
}

type AddMarkers struct {
	Markers []model.Marker
}

type RemoveItems struct {
	IDs []model.ItemRef
}

type FocusItem struct {
	ID model.ItemRef
}

type Clear struct{}

type SetViewportTo struct {
	Timestamp int64
}

type SetViewportRange struct {
	Start int64
	End   int64
}

type ZoomToFit struct {
	ViewportIdx int
}

type Load struct {
	Source string
}

type Reload struct{}

type Shutdown struct{}

func (*GetItemList) CommandType() CommandType      { return CmdGetItemList }
func (*GetItemInfo) CommandType() CommandType      { return CmdGetItemInfo }
func (*SetItemColor) CommandType() CommandType     { return CmdSetItemColor }
func (*AddVariables) CommandType() CommandType     { return CmdAddVariables }
func (*AddScope) CommandType() CommandType         { return CmdAddScope }
func (*AddItems) CommandType() CommandType         { return CmdAddItems }
func (*AddMarkers) CommandType() CommandType       { return CmdAddMarkers }
func (*RemoveItems) CommandType() CommandType      { return CmdRemoveItems }
func (*FocusItem) CommandType() CommandType        { return CmdFocusItem }
func (*Clear) CommandType() CommandType            { return CmdClear }
func (*SetViewportTo) CommandType() CommandType    { return CmdSetViewportTo }
func (*SetViewportRange) CommandType() CommandType { return CmdSetViewportRange }
func (*ZoomToFit) CommandType() CommandType        { return CmdZoomToFit }
func (*Load) CommandType() CommandType             { return CmdLoad }
func (*Reload) CommandType() CommandType           { return CmdReload }
func (*Shutdown) CommandType() CommandType         { return CmdShutdown }

func (*GetItemList) payload()      {}
func (*GetItemInfo) payload()      {}
func (*SetItemColor) payload()     {}
func (*AddVariables) payload()     {}
func (*AddScope) payload()         {}
func (*AddItems) payload()         {}
func (*AddMarkers) payload()       {}
func (*RemoveItems) payload()      {}
func (*FocusItem) payload()        {}
func (*Clear) payload()            {}
func (*SetViewportTo) payload()    {}
func (*SetViewportRange) payload() {}
func (*ZoomToFit) payload()        {}
func (*Load) payload()             {}
func (*Reload) payload()           {}
func (*Shutdown) payload()         {}

// IsGreeting reports whether c is the sentinel produced for a client greeting.
func (c Command) IsGreeting() bool {
	return c.Type == Unknown && c.Payload == nil
}

// Name returns the wire name of the command.
func (c Command) Name() string {
	return c.Type.String()
}

// Release drops every container owned by the command and resets it to the zero value.
// Calling it again, or on a zero Command, does nothing.
func (c *Command) Release() {
	if c == nil {
		return
	}
	switch p := c.Payload.(type) {
	case nil:
	case *GetItemInfo:
		clear(p.IDs)
		p.IDs = nil
	case *RemoveItems:
		clear(p.IDs)
		p.IDs = nil
	case *AddVariables:
		clear(p.Variables)
		p.Variables = nil
	case *AddItems:
		clear(p.Items)
		p.Items = nil
	case *AddMarkers:
		clear(p.Markers)
		p.Markers = nil
	case *SetItemColor:
		p.Color = ""
	case *AddScope:
		p.Scope = ""
	case *Load:
		p.Source = ""
	case *GetItemList, *FocusItem, *Clear, *SetViewportTo, *SetViewportRange,
		*ZoomToFit, *Reload, *Shutdown:
	default:
		panic(fmt.Sprintf("protocol: release of unhandled payload %T", p))
	}
	*c = Command{}
}
