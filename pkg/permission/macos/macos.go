// Package macos binds permission kinds to the macOS privacy (TCC) primitives
// and navigates to the matching System Settings panes.
//
// The primitives are only compiled on darwin with cgo enabled. Everywhere else
// every query reports the permission as unavailable, which the tracker resolves
// to denied.
package macos

import (
	"context"
	"fmt"
	"os/exec"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/permission"
)

// Supported reports whether the real primitives are compiled in.
func Supported() bool {
	return supported
}

// NewCapabilities returns the platform primitive for every kind.
func NewCapabilities() permission.Capabilities {
	return permission.Capabilities{
		permission.KindAccessibility:   accessibility{},
		permission.KindScreenRecording: screenCapture{},
		permission.KindMicrophone:      microphone{},
		permission.KindAutomation:      &automation{},
	}
}

// Runner launches an external command without waiting for it to exit.
type Runner func(ctx context.Context, name string, args ...string) error

// StartCommand is the default Runner. The child is reaped in the background.
func StartCommand(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// SettingsOpener opens System Settings on the privacy pane for a permission.
type SettingsOpener struct {
	run Runner
}

// NewSettingsOpener returns an opener that uses run, or StartCommand when nil.
func NewSettingsOpener(run Runner) *SettingsOpener {
	if run == nil {
		run = StartCommand
	}
	return &SettingsOpener{run: run}
}

// OpenSettings runs `open <settings url>` for p.
func (o *SettingsOpener) OpenSettings(ctx context.Context, p permission.Permission) error {
	url := p.Metadata().SettingsURL
	if url == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "no settings pane for permission").
			WithContext("permission", p.Key())
	}
	if err := o.run(ctx, "open", url); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePermissionRequestFailed, fmt.Sprintf("open %s", url)).
			WithContext("permission", p.Key())
	}
	return nil
}

// AVAuthorizationStatus values.
const (
	avNotDetermined = 0
	avRestricted    = 1
	avDenied        = 2
	avAuthorized    = 3
)

func microphoneStatus(code int) permission.Status {
	switch code {
	case avAuthorized:
		return permission.StatusGranted
	case avNotDetermined:
		return permission.StatusUnknown
	case avRestricted, avDenied:
		return permission.StatusDenied
	}
	return permission.StatusDenied
}

// OSStatus results of AEDeterminePermissionToAutomateTarget.
const (
	osNoErr                           = 0
	errAEEventNotPermitted            = -1743
	errAEEventWouldRequireUserConsent = -1744
	procNotFound                      = -600
)

func automationStatus(p permission.Permission, code int) (permission.Status, error) {
	switch code {
	case osNoErr:
		return permission.StatusGranted, nil
	case errAEEventNotPermitted:
		return permission.StatusDenied, nil
	case errAEEventWouldRequireUserConsent:
		return permission.StatusUnknown, nil
	case procNotFound:
		return permission.StatusUnknown, permission.QueryUnavailable(p, fmt.Errorf("target %s is not running", p.Target))
	}
	return permission.StatusUnknown, permission.QueryUnavailable(p, fmt.Errorf("OSStatus %d", code))
}
