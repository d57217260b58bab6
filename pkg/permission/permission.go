// Package permission tracks OS authorization for the capabilities Flux needs
// (accessibility, screen recording, microphone, automation). A Tracker polls
// live status through injected Capabilities and reports aggregate readiness.
package permission

import (
	"fmt"
	"strings"

	apperrors "github.com/odvcencio/flux/pkg/errors"
)

// Kind is an OS-gated capability. The set is closed.
type Kind string

const (
	KindAccessibility   Kind = "accessibility"
	KindScreenRecording Kind = "screenRecording"
	KindMicrophone      Kind = "microphone"
	KindAutomation      Kind = "automation"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindAccessibility, KindScreenRecording, KindMicrophone, KindAutomation}

// ParseKind accepts canonical names plus the snake and kebab spellings used in config files.
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	switch normalized {
	case "accessibility":
		return KindAccessibility, nil
	case "screenrecording", "screencapture":
		return KindScreenRecording, nil
	case "microphone", "mic":
		return KindMicrophone, nil
	case "automation", "appleevents":
		return KindAutomation, nil
	}
	return "", apperrors.New(apperrors.ErrCodePermissionUnknown, fmt.Sprintf("unknown permission %q", raw)).
		WithRemediation("Use one of: accessibility, screenRecording, microphone, automation:<bundle id>")
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccessibility, KindScreenRecording, KindMicrophone, KindAutomation:
		return true
	}
	return false
}

// Permission is a Kind plus, for automation only, the bundle identifier of the target app.
type Permission struct {
	Kind   Kind
	Target string
}

// Accessibility, ScreenRecording and Microphone are the unparameterized permissions.
var (
	Accessibility   = Permission{Kind: KindAccessibility}
	ScreenRecording = Permission{Kind: KindScreenRecording}
	Microphone      = Permission{Kind: KindMicrophone}
)

// Automation returns the automation permission for the given target application.
func Automation(bundleID string) Permission {
	return Permission{Kind: KindAutomation, Target: strings.TrimSpace(bundleID)}
}

// Parse reads the Key form: a kind name, or "automation:<bundle id>".
func Parse(raw string) (Permission, error) {
	name, target, hasTarget := strings.Cut(strings.TrimSpace(raw), ":")
	kind, err := ParseKind(name)
	if err != nil {
		return Permission{}, err
	}
	p := Permission{Kind: kind}
	if hasTarget {
		p.Target = strings.TrimSpace(target)
	}
	if err := p.Validate(); err != nil {
		return Permission{}, err
	}
	return p, nil
}

// Validate checks the target rules: automation needs one, nothing else may have one.
func (p Permission) Validate() error {
	if !p.Kind.Valid() {
		return apperrors.New(apperrors.ErrCodePermissionUnknown, fmt.Sprintf("unknown permission kind %q", p.Kind))
	}
	if p.Kind == KindAutomation && p.Target == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "automation permission requires a target bundle identifier").
			WithRemediation(`Write it as "automation:com.apple.Safari"`)
	}
	if p.Kind != KindAutomation && p.Target != "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("%s does not take a target", p.Kind)).
			WithContext("target", p.Target)
	}
	return nil
}

// Key is the stable identity used for maps, metrics labels and the wire.
func (p Permission) Key() string {
	if p.Kind == KindAutomation {
		return string(p.Kind) + ":" + p.Target
	}
	return string(p.Kind)
}

func (p Permission) String() string {
	return p.Key()
}

// Metadata returns the static description for the permission.
func (p Permission) Metadata() Metadata {
	md := Describe(p.Kind)
	if p.Kind == KindAutomation && p.Target != "" {
		md.DisplayName = fmt.Sprintf("%s (%s)", md.DisplayName, p.Target)
	}
	return md
}

// MarshalText renders the Key form.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.Key()), nil
}

// UnmarshalText parses the Key form.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Set is an ordered list of distinct permissions. Order is for display only.
type Set []Permission

// NewSet builds a Set, dropping duplicates while keeping first-seen order.
func NewSet(perms ...Permission) Set {
	seen := make(map[string]struct{}, len(perms))
	out := make(Set, 0, len(perms))
	for _, p := range perms {
		key := p.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ParseSet parses every entry with Parse and de-duplicates the result.
func ParseSet(raw []string) (Set, error) {
	perms := make([]Permission, 0, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		p, err := Parse(entry)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return NewSet(perms...), nil
}

// Contains reports whether p is in the set.
func (s Set) Contains(p Permission) bool {
	key := p.Key()
	for _, candidate := range s {
		if candidate.Key() == key {
			return true
		}
	}
	return false
}

// Keys returns the Key of every member in order.
func (s Set) Keys() []string {
	keys := make([]string, len(s))
	for i, p := range s {
		keys[i] = p.Key()
	}
	return keys
}
