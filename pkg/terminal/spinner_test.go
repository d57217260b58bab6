package terminal

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odvcencio/flux/pkg/permission"
)

// syncBuffer guards a bytes.Buffer for reads from the test goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerRendersFrames(t *testing.T) {
	var out syncBuffer
	spinner := NewSpinner(&out, "Loading")
	spinner.interval = 5 * time.Millisecond

	spinner.Start()
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "Loading") }, time.Second, 5*time.Millisecond)
	spinner.Stop()

	assert.Contains(t, out.String(), "\r\033[K")
}

func TestSpinnerElapsed(t *testing.T) {
	spinner := NewSpinner(&syncBuffer{}, "Loading")
	assert.Zero(t, spinner.Elapsed())

	spinner.Start()
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, spinner.Elapsed(), 20*time.Millisecond)
	spinner.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var out syncBuffer
	spinner := NewSpinner(&out, "Loading")
	spinner.Start()

	spinner.StopWithSuccess("Done")
	spinner.StopWithError("Failed")
	spinner.Stop()

	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "Done")
	assert.NotContains(t, out.String(), "Failed")
}

func TestSpinnerStopWithError(t *testing.T) {
	var out syncBuffer
	spinner := NewSpinner(&out, "Loading")
	spinner.Start()
	spinner.StopWithError("sidecar unreachable")

	assert.Contains(t, out.String(), "✗")
	assert.Contains(t, out.String(), "sidecar unreachable")
}

func TestSpinnerTrack(t *testing.T) {
	spinner := NewSpinner(&syncBuffer{}, "")
	spinner.Track(permission.Snapshot{Entries: []permission.Entry{
		{Permission: permission.Accessibility, Status: permission.StatusGranted},
		{Permission: permission.Microphone, Status: permission.StatusDenied},
		{Permission: permission.ScreenRecording, Status: permission.StatusUnknown},
	}})

	assert.Equal(t, "Waiting for permissions (1 of 3 granted)", spinner.Message())
}
