package convert

import (
	"fmt"

	"wcp-bridge/server/config"
	"wcp-bridge/server/internal/repo"
)

// New builds the converter selected by cfg.Kind. It returns nil for "none".
// A non-nil r enables the conversion cache.
func New(cfg config.ConverterConfig, r repo.Repository) (Converter, error) {
	var b Backend
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "stub":
		b = Stub{}
	case "external":
		b = NewExternal(cfg.FSDB2VCD, cfg.VCD2FST, cfg.TempDir)
	case "plugin":
		p, err := OpenPlugin(cfg.PluginPath)
		if err != nil {
			return nil, err
		}
		b = p
	default:
		return nil, fmt.Errorf("unknown converter kind %q", cfg.Kind)
	}

	var c Converter = NewFST(b, cfg.TempDir)
	if r != nil {
		c = NewCached(c, r)
	}
	return c, nil
}
