//go:build !darwin || !cgo

package macos

import (
	"context"
	"errors"
	"runtime"

	"github.com/odvcencio/flux/pkg/permission"
)

const supported = false

var errUnsupported = errors.New("privacy primitives are not available on " + runtime.GOOS)

type unavailable struct{}

func (unavailable) QueryStatus(_ context.Context, p permission.Permission) (permission.Status, error) {
	return permission.StatusUnknown, permission.QueryUnavailable(p, errUnsupported)
}

func (unavailable) RequestAccess(_ context.Context, p permission.Permission) error {
	return permission.QueryUnavailable(p, errUnsupported)
}

type (
	accessibility struct{ unavailable }
	screenCapture struct{ unavailable }
	microphone    struct{ unavailable }
	automation    struct{ unavailable }
)
