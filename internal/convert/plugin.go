package convert

import (
	"context"
	"errors"
	"fmt"
	"plugin"
)

// PluginSymbol is the function a converter plugin must export:
//
//	func ConverterAPI() *convert.PluginAPI
const PluginSymbol = "ConverterAPI"

// PluginAPI is what a converter plugin hands back from its ConverterAPI function.
type PluginAPI struct {
	APIVersion   uint32
	Info         *Info
	ConvertToFST func(in, out string) error
}

var errAPIMismatch = errors.New("FSDB plugin API version mismatch")

// OpenPlugin loads a Go plugin and returns its backend.
func OpenPlugin(path string) (Backend, error) {
	if path == "" {
		return nil, ErrNotConfigured
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load FSDB plugin: %w", err)
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("FSDB plugin missing %s symbol", PluginSymbol)
	}
	get, ok := sym.(func() *PluginAPI)
	if !ok || get == nil {
		return nil, fmt.Errorf("FSDB plugin missing %s symbol", PluginSymbol)
	}
	return pluginBackend(get())
}

func pluginBackend(api *PluginAPI) (Backend, error) {
	if api == nil || api.APIVersion != APIVersion || api.ConvertToFST == nil {
		return nil, errAPIMismatch
	}
	return &loadedPlugin{api: api}, nil
}

type loadedPlugin struct {
	api *PluginAPI
}

func (p *loadedPlugin) Info() Info {
	if p.api.Info == nil {
		return Info{APIVersion: p.api.APIVersion, Name: "fsdb-plugin"}
	}
	return *p.api.Info
}

func (p *loadedPlugin) ConvertToFST(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.api.ConvertToFST(in, out); err != nil {
		return err
	}
	return nil
}
