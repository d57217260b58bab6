// Package terminal renders flux status, onboarding and skill output with
// lipgloss styles and glamour markdown. No TUI framework, just print and scroll.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/odvcencio/flux/pkg/onboarding"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/skill"
)

// Writer provides styled terminal output with markdown rendering.
type Writer struct {
	out      io.Writer
	in       *bufio.Reader
	renderer *glamour.TermRenderer
	mu       sync.Mutex

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	headerStyle  lipgloss.Style
}

// New creates a new terminal Writer on stdout.
func New() *Writer {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a terminal Writer with a custom output destination.
// Output that is not a terminal gets no color.
func NewWithOutput(out io.Writer) *Writer {
	f, ok := out.(*os.File)
	tty := ok && term.IsTerminal(int(f.Fd()))

	style := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if tty {
		lipgloss.SetColorProfile(termenv.ColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
		style = []glamour.TermRendererOption{
			glamour.WithStandardStyle("notty"),
			glamour.WithColorProfile(termenv.Ascii),
		}
	}
	renderer, _ := glamour.NewTermRenderer(append(style, glamour.WithWordWrap(100))...)

	return &Writer{
		out:      out,
		in:       bufio.NewReader(os.Stdin),
		renderer: renderer,

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		boldStyle: lipgloss.NewStyle().Bold(true),
		headerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}),
	}
}

// SetInput replaces the reader used by Confirm.
func (w *Writer) SetInput(in io.Reader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.in = bufio.NewReader(in)
}

// Println writes text with a newline.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Markdown renders markdown, falling back to plain text.
func (w *Writer) Markdown(md string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.renderer == nil {
		fmt.Fprintln(w.out, md)
		return nil
	}

	rendered, err := w.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return err
	}

	fmt.Fprint(w.out, rendered)
	return nil
}

// Error prints an error message in red.
func (w *Writer) Error(format string, args ...any) {
	w.line(w.errorStyle, "error: "+fmt.Sprintf(format, args...))
}

// Warn prints a warning message in yellow.
func (w *Writer) Warn(format string, args ...any) {
	w.line(w.warnStyle, "warning: "+fmt.Sprintf(format, args...))
}

// Success prints a success message in green.
func (w *Writer) Success(format string, args ...any) {
	w.line(w.successStyle, "✓ "+fmt.Sprintf(format, args...))
}

// Info prints an info message in blue.
func (w *Writer) Info(format string, args ...any) {
	w.line(w.infoStyle, fmt.Sprintf(format, args...))
}

// Dim prints dimmed/secondary text.
func (w *Writer) Dim(format string, args ...any) {
	w.line(w.dimStyle, fmt.Sprintf(format, args...))
}

// Header prints a section header.
func (w *Writer) Header(title string) {
	w.line(w.headerStyle, title)
}

func (w *Writer) line(style lipgloss.Style, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, style.Render(msg))
}

// Box renders content in a rounded box.
func (w *Writer) Box(title, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"}).
		Padding(1, 2).
		Width(min(getTerminalWidth()-4, 80))

	output := content
	if title != "" {
		output = w.boldStyle.Render(title) + "\n\n" + content
	}
	fmt.Fprintln(w.out, boxStyle.Render(output))
}

// StatusBadge renders a permission status with its color.
func (w *Writer) StatusBadge(status permission.Status) string {
	switch status {
	case permission.StatusGranted:
		return w.successStyle.Render("● granted")
	case permission.StatusDenied:
		return w.errorStyle.Render("● denied")
	default:
		return w.dimStyle.Render("○ unknown")
	}
}

// PermissionTable prints one row per permission in set order, then a summary.
func (w *Writer) PermissionTable(snap permission.Snapshot) {
	nameWidth := 0
	for _, entry := range snap.Entries {
		nameWidth = max(nameWidth, lipgloss.Width(displayName(entry.Permission)))
	}
	nameStyle := w.boldStyle.Width(nameWidth + 2)

	w.mu.Lock()
	for _, entry := range snap.Entries {
		name := displayName(entry.Permission)
		fmt.Fprintf(w.out, "  %s %s %s\n",
			entry.Metadata.Icon,
			nameStyle.Render(name),
			w.StatusBadge(entry.Status))
	}
	w.mu.Unlock()

	switch {
	case len(snap.Entries) == 0:
		w.Dim("No permissions required.")
	case snap.AllGranted:
		w.Success("All permissions granted")
	case snap.Polls == 0:
		w.Dim("Not polled yet.")
	default:
		w.Warn("%d of %d permissions missing", missingCount(snap), len(snap.Entries))
	}
}

// OnboardingSteps prints each step with its description and what granting involves.
func (w *Writer) OnboardingSteps(steps []onboarding.Step) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, step := range steps {
		fmt.Fprintf(w.out, "%d. %s %s  %s\n", i+1, step.Icon,
			w.boldStyle.Render(displayName(step.Permission)),
			w.StatusBadge(step.Status))
		fmt.Fprintln(w.out, "   "+w.dimStyle.Render(step.Description))
		if step.Status != permission.StatusGranted {
			hint := "flux request " + step.Permission.Key() + " shows the system prompt"
			if step.OpensSettings {
				hint = "flux request " + step.Permission.Key() + " opens System Settings"
			}
			fmt.Fprintln(w.out, "   "+w.infoStyle.Render(hint))
		}
	}
}

// SkillList prints each skill with its source and declared permissions.
func (w *Writer) SkillList(skills []*skill.Skill) {
	if len(skills) == 0 {
		w.Dim("No skills found.")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range skills {
		fmt.Fprintf(w.out, "  %s %s\n", w.boldStyle.Render(s.Name), w.dimStyle.Render("("+s.Source+")"))
		fmt.Fprintln(w.out, "    "+s.Description)
		if s.NeedsPermissions() {
			fmt.Fprintln(w.out, "    "+w.infoStyle.Render("needs: "+strings.Join(s.RequiredPermissions().Keys(), ", ")))
		}
	}
}

// Skill prints the skill header, its permission sheet and its rendered body.
func (w *Writer) Skill(s *skill.Skill, sheet *permission.Snapshot) error {
	w.Header(s.Name)
	w.Dim("%s · %s", s.Source, s.FilePath)
	w.Println("%s", s.Description)
	if sheet != nil && len(sheet.Entries) > 0 {
		w.Println("")
		w.PermissionTable(*sheet)
	}
	w.Println("")
	return w.Markdown(s.Content)
}

// Confirm prompts for yes/no confirmation.
func (w *Writer) Confirm(prompt string, defaultYes bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, hint)

	input, _ := w.in.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// getTerminalWidth returns the terminal width, defaulting to 80.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width == 0 {
		return 80
	}
	return width
}

// displayName renders the kind's name with the automation target as an arrow,
// not the parenthesised form Metadata carries.
func displayName(p permission.Permission) string {
	name := permission.Describe(p.Kind).DisplayName
	if p.Target == "" {
		return name
	}
	return name + " → " + p.Target
}

func missingCount(snap permission.Snapshot) int {
	n := 0
	for _, entry := range snap.Entries {
		if entry.Status != permission.StatusGranted {
			n++
		}
	}
	return n
}
