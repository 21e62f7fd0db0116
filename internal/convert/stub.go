package convert

import (
	"context"
	"errors"
)

var errStub = errors.New("FSDB plugin stub: no conversion implemented")

// Stub is a backend that never converts anything.
type Stub struct{}

func (Stub) Info() Info {
	return Info{APIVersion: APIVersion, Name: "fsdb-stub", Version: "0.1", Vendor: "wcp-bridge"}
}

func (Stub) ConvertToFST(context.Context, string, string) error {
	return errStub
}
