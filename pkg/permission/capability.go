package permission

import (
	"context"
	"fmt"

	apperrors "github.com/odvcencio/flux/pkg/errors"
)

// Status is the authorization state observed by the last poll.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusDenied  Status = "denied"
	StatusGranted Status = "granted"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusDenied, StatusGranted:
		return true
	}
	return false
}

//go:generate mockgen -package=permission -destination=mock_capability_test.go github.com/odvcencio/flux/pkg/permission Capability,SettingsOpener

// Capability wraps the OS authorization primitives for one kind of permission.
// Implementations must return promptly from RequestAccess: OS prompts complete
// asynchronously and their outcome is only observed by a later QueryStatus.
type Capability interface {
	// QueryStatus reads the current authorization state. It never prompts.
	QueryStatus(ctx context.Context, p Permission) (Status, error)

	// RequestAccess triggers the OS prompt for p.
	RequestAccess(ctx context.Context, p Permission) error
}

// PromptWaiter is implemented by capabilities whose RequestAccess hands the OS
// prompt to a background call. WaitPrompts returns once those calls finish or
// ctx is done.
type PromptWaiter interface {
	WaitPrompts(ctx context.Context) error
}

// SettingsOpener navigates to the system settings pane for a permission.
type SettingsOpener interface {
	OpenSettings(ctx context.Context, p Permission) error
}

// Capabilities dispatches each kind to its primitive. A missing entry is treated
// the same as a primitive that cannot be queried.
type Capabilities map[Kind]Capability

// WaitPrompts waits on every capability in c that has prompts in flight.
func (c Capabilities) WaitPrompts(ctx context.Context) error {
	for _, capability := range c {
		if w, ok := capability.(PromptWaiter); ok {
			if err := w.WaitPrompts(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// CapabilityFuncs adapts plain functions to Capability. Nil funcs report unavailable.
type CapabilityFuncs struct {
	Query   func(ctx context.Context, p Permission) (Status, error)
	Request func(ctx context.Context, p Permission) error
}

func (f CapabilityFuncs) QueryStatus(ctx context.Context, p Permission) (Status, error) {
	if f.Query == nil {
		return StatusUnknown, QueryUnavailable(p, nil)
	}
	return f.Query(ctx, p)
}

func (f CapabilityFuncs) RequestAccess(ctx context.Context, p Permission) error {
	if f.Request == nil {
		return nil
	}
	return f.Request(ctx, p)
}

// SettingsOpenerFunc adapts a function to SettingsOpener.
type SettingsOpenerFunc func(ctx context.Context, p Permission) error

func (f SettingsOpenerFunc) OpenSettings(ctx context.Context, p Permission) error {
	return f(ctx, p)
}

// QueryUnavailable builds the error a Capability returns when the OS primitive
// cannot be queried (missing entitlement, sandbox, unsupported platform).
func QueryUnavailable(p Permission, cause error) *apperrors.Error {
	msg := fmt.Sprintf("authorization status for %s cannot be queried", p.Key())
	var err *apperrors.Error
	if cause != nil {
		err = apperrors.Wrap(cause, apperrors.ErrCodePermissionQueryUnavailable, msg)
	} else {
		err = apperrors.New(apperrors.ErrCodePermissionQueryUnavailable, msg)
	}
	return err.WithContext("permission", p.Key())
}

// IsQueryUnavailable reports whether err carries the query-unavailable code.
func IsQueryUnavailable(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodePermissionQueryUnavailable)
}
