package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/odvcencio/flux/pkg/permission"
)

// SpinnerFrames are the default animation frames.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line while flux waits on the user, for
// example while onboarding waits for grants to show up in a poll.
type Spinner struct {
	out      io.Writer
	interval time.Duration
	style    lipgloss.Style

	mu        sync.Mutex
	message   string
	current   int
	startTime time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:      out,
		message:  message,
		interval: 80 * time.Millisecond,
		done:     make(chan struct{}),
		style: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
	}
}

// SetMessage updates the spinner message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Message returns the current message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Track rewrites the message from a tracker snapshot.
func (s *Spinner) Track(snap permission.Snapshot) {
	granted := len(snap.Entries) - missingCount(snap)
	s.SetMessage(fmt.Sprintf("Waiting for permissions (%d of %d granted)", granted, len(snap.Entries)))
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	go s.run()
}

func (s *Spinner) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.frame()
		}
	}
}

func (s *Spinner) frame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	frame := SpinnerFrames[s.current%len(SpinnerFrames)]
	s.current++
	elapsed := time.Since(s.startTime).Round(time.Second)
	fmt.Fprintf(s.out, "\r%s %s (%s)", s.style.Render(frame), s.message, elapsed)
}

// Elapsed returns the time since the spinner started.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Stop clears the line. Later calls are no-ops.
func (s *Spinner) Stop() {
	s.finish("")
}

// StopWithSuccess stops and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	style := lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	s.finish(style.Render("✓") + " " + message)
}

// StopWithError stops and prints a failure line.
func (s *Spinner) StopWithError(message string) {
	style := lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	s.finish(style.Render("✗") + " " + message)
}

func (s *Spinner) finish(line string) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		close(s.done)
		fmt.Fprint(s.out, "\r\033[K")
		if line != "" {
			fmt.Fprintln(s.out, line)
		}
	})
}
