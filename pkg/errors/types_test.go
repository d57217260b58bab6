package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodePermissionUnknown, "permission bluetooth not recognised")

	if err == nil {
		t.Fatal("New should return non-nil error")
	}

	if err.Code != ErrCodePermissionUnknown {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodePermissionUnknown)
	}

	if err.Message != "permission bluetooth not recognised" {
		t.Errorf("Message = %v", err.Message)
	}

	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}

	if len(err.Stack) == 0 {
		t.Error("Stack should be captured")
	}

	if err.Retryable {
		t.Error("Retryable should default to false")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("original error")
	err := Wrap(underlying, ErrCodeStorageRead, "failed to read settings")

	if err == nil {
		t.Fatal("Wrap should return non-nil error")
	}

	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}

	if !strings.Contains(err.Error(), "original error") {
		t.Error("Error string should include underlying error")
	}
}

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "test"); err != nil {
		t.Error("Wrap of nil should return nil")
	}
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodePermissionQueryUnavailable, "query failed").
		WithContext("permission", "screenRecording").
		WithContext("attempt", 1)

	if err.Context["permission"] != "screenRecording" {
		t.Error("Context should contain 'permission' key")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "attempt: 1, permission: screenRecording") {
		t.Errorf("Error string should include sorted context, got %q", errStr)
	}
}

func TestWithRetryable(t *testing.T) {
	err := New(ErrCodeTranscriberUnavailable, "sidecar not up").WithRetryable(true)

	if !err.IsRetryable() {
		t.Error("IsRetryable should return true")
	}
}

func TestWithRemediation(t *testing.T) {
	err := New(ErrCodeOnboardingIncomplete, "missing permissions").
		WithUserMessage("Grant the remaining permissions first.").
		WithRemediation("Open System Settings", "Re-run flux onboard")

	if err.UserMessage == "" {
		t.Error("UserMessage should be set")
	}
	if len(err.Remediation) != 2 {
		t.Errorf("Remediation = %v, want 2 tips", err.Remediation)
	}

	same := err.WithRemediation()
	if len(same.Remediation) != 2 {
		t.Error("empty WithRemediation should keep existing tips")
	}
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := Wrap(underlying, ErrCodeInternal, "wrapped")

	if err.Unwrap() != underlying {
		t.Error("Unwrap should return underlying error")
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see through Wrap")
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodePermissionQueryUnavailable, "unavailable")

	if !IsCode(err, ErrCodePermissionQueryUnavailable) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeInternal) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeInternal) {
		t.Error("IsCode should return false for nil error")
	}
	if IsCode(errors.New("standard error"), ErrCodeInternal) {
		t.Error("IsCode should return false for non-Flux errors")
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	inner := New(ErrCodePermissionQueryUnavailable, "no entitlement")
	outer := Wrap(inner, ErrCodeInternal, "poll")
	viaFmt := fmt.Errorf("tracker: %w", outer)

	if !IsCode(viaFmt, ErrCodeInternal) {
		t.Error("IsCode should find the outer code through fmt wrapping")
	}
	if !IsCode(viaFmt, ErrCodePermissionQueryUnavailable) {
		t.Error("IsCode should find nested codes")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(New(ErrCodeSkillNotFound, "x")) != ErrCodeSkillNotFound {
		t.Error("GetCode should return the code")
	}
	if GetCode(nil) != "" {
		t.Error("GetCode should return empty string for nil")
	}
	if GetCode(errors.New("standard")) != ErrCodeInternal {
		t.Error("GetCode should return ErrCodeInternal for non-Flux errors")
	}
}

func TestIsRetryable_Function(t *testing.T) {
	retryable := New(ErrCodeTranscriberUnavailable, "down").WithRetryable(true)
	notRetryable := New(ErrCodeConfigInvalid, "bad config")

	if !IsRetryable(retryable) {
		t.Error("IsRetryable should return true for retryable error")
	}
	if IsRetryable(notRetryable) {
		t.Error("IsRetryable should return false for non-retryable error")
	}
	if IsRetryable(nil) {
		t.Error("IsRetryable should return false for nil")
	}
	if IsRetryable(errors.New("standard")) {
		t.Error("IsRetryable should return false for non-Flux errors")
	}
}

func TestStackTrace(t *testing.T) {
	err := New(ErrCodeInternal, "test error")

	trace := err.StackTrace()
	if !strings.Contains(trace, "Stack trace:") {
		t.Error("StackTrace should contain header")
	}
	if len(err.Stack) == 0 {
		t.Error("Stack should have frames")
	}
}

func TestCaptureStack(t *testing.T) {
	frames := captureStack(0)
	if len(frames) == 0 {
		t.Fatal("captureStack should return at least one frame")
	}

	found := false
	for _, frame := range frames {
		if strings.Contains(frame.Function, "Test") || strings.Contains(frame.Function, "errors") {
			found = true
			break
		}
	}
	if !found {
		t.Error("Stack should contain test or errors package frames")
	}
}
