//go:build darwin && cgo

package macos

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation -framework CoreGraphics -framework AVFoundation -framework Foundation
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <CoreGraphics/CoreGraphics.h>
#import <AVFoundation/AVFoundation.h>
#include <stdlib.h>
#include <string.h>

static int fluxAXTrusted(int prompt) {
	CFMutableDictionaryRef opts = CFDictionaryCreateMutable(NULL, 1, &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	CFDictionarySetValue(opts, kAXTrustedCheckOptionPrompt, prompt ? kCFBooleanTrue : kCFBooleanFalse);
	Boolean trusted = AXIsProcessTrustedWithOptions(opts);
	CFRelease(opts);
	return trusted ? 1 : 0;
}

static int fluxScreenCapturePreflight(void) {
	return CGPreflightScreenCaptureAccess() ? 1 : 0;
}

static void fluxScreenCaptureRequest(void) {
	CGRequestScreenCaptureAccess();
}

static int fluxMicrophoneStatus(void) {
	return (int)[AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
}

static void fluxMicrophoneRequest(void) {
	[AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

static int fluxAutomationStatus(const char *bundleID, int ask) {
	AEAddressDesc target;
	OSStatus status = AECreateDesc(typeApplicationBundleID, bundleID, strlen(bundleID), &target);
	if (status != noErr) {
		return (int)status;
	}
	status = AEDeterminePermissionToAutomateTarget(&target, typeWildCard, typeWildCard, ask ? true : false);
	AEDisposeDesc(&target);
	return (int)status;
}
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"github.com/odvcencio/flux/pkg/permission"
)

const supported = true

type accessibility struct{}

func (accessibility) QueryStatus(_ context.Context, _ permission.Permission) (permission.Status, error) {
	if C.fluxAXTrusted(0) != 0 {
		return permission.StatusGranted, nil
	}
	return permission.StatusDenied, nil
}

func (accessibility) RequestAccess(_ context.Context, _ permission.Permission) error {
	C.fluxAXTrusted(1)
	return nil
}

type screenCapture struct{}

func (screenCapture) QueryStatus(_ context.Context, _ permission.Permission) (permission.Status, error) {
	if C.fluxScreenCapturePreflight() != 0 {
		return permission.StatusGranted, nil
	}
	return permission.StatusDenied, nil
}

func (screenCapture) RequestAccess(_ context.Context, _ permission.Permission) error {
	C.fluxScreenCaptureRequest()
	return nil
}

type microphone struct{}

func (microphone) QueryStatus(_ context.Context, _ permission.Permission) (permission.Status, error) {
	return microphoneStatus(int(C.fluxMicrophoneStatus())), nil
}

func (microphone) RequestAccess(_ context.Context, _ permission.Permission) error {
	C.fluxMicrophoneRequest()
	return nil
}

// automation tracks consent prompts still waiting on the user.
type automation struct {
	pending sync.WaitGroup
}

func (*automation) QueryStatus(_ context.Context, p permission.Permission) (permission.Status, error) {
	target := C.CString(p.Target)
	defer C.free(unsafe.Pointer(target))
	return automationStatus(p, int(C.fluxAutomationStatus(target, 0)))
}

// RequestAccess asks in the background: with ask set, the AppleEvents call
// blocks until the user answers the consent prompt. WaitPrompts waits for it.
func (a *automation) RequestAccess(_ context.Context, p permission.Permission) error {
	target := C.CString(p.Target)
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		defer C.free(unsafe.Pointer(target))
		C.fluxAutomationStatus(target, 1)
	}()
	return nil
}

// WaitPrompts blocks until every consent prompt started by RequestAccess has
// been answered, or ctx is done.
func (a *automation) WaitPrompts(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
