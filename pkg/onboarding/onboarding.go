// Package onboarding drives the first-run flow that walks the user through
// granting the permissions flux needs.
package onboarding

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/telemetry"
)

// KeyCompleted is the settings key holding the completion flag.
const KeyCompleted = "onboarding.completed"

// Scope labels the onboarding tracker's events.
const Scope = "onboarding"

// DefaultPermissions is the set onboarding asks for when nothing is configured.
var DefaultPermissions = permission.NewSet(permission.Accessibility, permission.ScreenRecording, permission.Microphone)

//go:generate mockgen -package=onboarding -destination=mock_settings_store_test.go github.com/odvcencio/flux/pkg/onboarding SettingsStore

// SettingsStore persists the completion flag and the audit trail.
type SettingsStore interface {
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
	RecordAuditLog(actor, scope, action string, payload any) error
}

// Sidecar reports whether the speech sidecar is serving.
type Sidecar interface {
	Ready(ctx context.Context) bool
}

// SidecarStatus is the outcome of SidecarReady.
type SidecarStatus string

const (
	SidecarReady       SidecarStatus = "ready"
	SidecarUnavailable SidecarStatus = "unavailable"
	// SidecarSkipped means no check applies: no microphone permission in the
	// set, no sidecar configured, or the check was disabled.
	SidecarSkipped SidecarStatus = "skipped"
)

// Step is one row of the onboarding view.
type Step struct {
	Permission    permission.Permission `json:"permission"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Icon          string                `json:"icon"`
	Status        permission.Status     `json:"status"`
	OpensSettings bool                  `json:"opensSettings"`
}

// State is the complete view model.
type State struct {
	Steps     []Step        `json:"steps"`
	Ready     bool          `json:"ready"`
	Completed bool          `json:"completed"`
	Polling   bool          `json:"polling"`
	Sidecar   SidecarStatus `json:"sidecar,omitempty"`
}

// Option configures a Flow.
type Option func(*Flow)

// WithInterval sets the poll interval used by Begin.
func WithInterval(interval time.Duration) Option {
	return func(f *Flow) { f.interval = interval }
}

// WithSidecar enables the sidecar readiness check.
func WithSidecar(sidecar Sidecar) Option {
	return func(f *Flow) { f.sidecar = sidecar }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Flow) { f.logger = logger }
}

// WithHub publishes onboarding lifecycle events.
func WithHub(hub *telemetry.Hub) Option {
	return func(f *Flow) { f.hub = hub }
}

// Flow couples a permission tracker with persisted completion state.
type Flow struct {
	tracker  *permission.Tracker
	store    SettingsStore
	sidecar  Sidecar
	interval time.Duration
	logger   *logging.Logger
	hub      *telemetry.Hub
}

// New builds a flow around tracker. store may be nil, in which case completion
// is not persisted.
func New(tracker *permission.Tracker, store SettingsStore, opts ...Option) *Flow {
	f := &Flow{
		tracker:  tracker,
		store:    store,
		interval: permission.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Tracker exposes the underlying tracker.
func (f *Flow) Tracker() *permission.Tracker {
	return f.tracker
}

// Begin starts polling. Call it when the onboarding view becomes visible.
func (f *Flow) Begin(ctx context.Context) {
	f.tracker.Start(ctx, f.interval)
	_ = f.logger.Info(logging.CategoryOnboarding, "started", "", map[string]any{
		"permissions": f.tracker.Required().Keys(),
		"interval":    f.interval.String(),
	})
	f.hub.Publish(telemetry.Event{Type: telemetry.EventOnboardingStarted, Scope: Scope, SessionID: f.logger.SessionID()})
}

// End stops polling. Call it when the view goes away.
func (f *Flow) End() {
	f.tracker.Stop()
}

// Steps lists every permission with its last polled status.
func (f *Flow) Steps() []Step {
	snap := f.tracker.Snapshot()
	steps := make([]Step, len(snap.Entries))
	for i, entry := range snap.Entries {
		steps[i] = Step{
			Permission:    entry.Permission,
			Title:         entry.Metadata.DisplayName,
			Description:   entry.Metadata.Description,
			Icon:          entry.Metadata.Icon,
			Status:        entry.Status,
			OpensSettings: entry.Metadata.OpensSettings,
		}
	}
	return steps
}

// Ready reports whether every permission was granted at the last poll.
func (f *Flow) Ready() bool {
	return f.tracker.AllGranted()
}

// Request forwards a grant request for p and records it in the audit trail.
func (f *Flow) Request(ctx context.Context, p permission.Permission) {
	f.tracker.RequestGrant(ctx, p)
	if f.store != nil {
		if err := f.store.RecordAuditLog("user", Scope, "grant_requested", map[string]any{"permission": p.Key()}); err != nil {
			_ = f.logger.Warn(logging.CategoryOnboarding, "audit_failed", err.Error(), nil)
		}
	}
}

// Complete finishes onboarding. Unless force is set it refuses while any
// permission is missing. It polls once more first, waiting out a poll the loop
// already has in flight, so a grant made moments ago still counts. Then it
// stops polling and persists the flag.
func (f *Flow) Complete(ctx context.Context, force bool) error {
	f.tracker.PollWait(ctx)

	missing := f.missing()
	if len(missing) > 0 && !force {
		return apperrors.New(apperrors.ErrCodeOnboardingIncomplete, "permissions still missing: "+strings.Join(missing, ", ")).
			WithContext("missing", missing).
			WithUserMessage("Grant the remaining permissions, then continue.")
	}

	f.tracker.Stop()

	if f.store != nil {
		if err := f.store.SetBool(KeyCompleted, true); err != nil {
			return err
		}
		if err := f.store.RecordAuditLog("user", Scope, "completed", map[string]any{
			"forced":  force,
			"missing": missing,
		}); err != nil {
			_ = f.logger.Warn(logging.CategoryOnboarding, "audit_failed", err.Error(), nil)
		}
	}

	_ = f.logger.Info(logging.CategoryOnboarding, "completed", "", map[string]any{
		"forced":  force,
		"missing": missing,
	})
	f.hub.Publish(telemetry.Event{
		Type:      telemetry.EventOnboardingCompleted,
		Scope:     Scope,
		SessionID: f.logger.SessionID(),
		Data:      map[string]any{"forced": force},
	})
	return nil
}

func (f *Flow) missing() []string {
	var missing []string
	for _, p := range f.tracker.Required() {
		if f.tracker.Status(p) != permission.StatusGranted {
			missing = append(missing, p.Key())
		}
	}
	return missing
}

// Completed reads the persisted flag. Without a store it is always false.
func (f *Flow) Completed() (bool, error) {
	if f.store == nil {
		return false, nil
	}
	return f.store.GetBool(KeyCompleted)
}

// Reset clears the flag so onboarding runs again.
func (f *Flow) Reset() error {
	if f.store != nil {
		if err := f.store.SetBool(KeyCompleted, false); err != nil {
			return err
		}
		if err := f.store.RecordAuditLog("user", Scope, "reset", nil); err != nil {
			_ = f.logger.Warn(logging.CategoryOnboarding, "audit_failed", err.Error(), nil)
		}
	}
	_ = f.logger.Info(logging.CategoryOnboarding, "reset", "", nil)
	f.hub.Publish(telemetry.Event{Type: telemetry.EventOnboardingReset, Scope: Scope, SessionID: f.logger.SessionID()})
	return nil
}

// SidecarReady checks the speech sidecar when the flow needs the microphone.
// The result is informational and never affects Ready.
func (f *Flow) SidecarReady(ctx context.Context) SidecarStatus {
	if f.sidecar == nil || !f.tracker.Required().Contains(permission.Microphone) {
		return SidecarSkipped
	}
	if f.sidecar.Ready(ctx) {
		return SidecarReady
	}
	return SidecarUnavailable
}

// State assembles the view model.
func (f *Flow) State(ctx context.Context) (State, error) {
	completed, err := f.Completed()
	if err != nil {
		return State{}, err
	}
	snap := f.tracker.Snapshot()
	return State{
		Steps:     f.Steps(),
		Ready:     snap.AllGranted,
		Completed: completed,
		Polling:   snap.Polling,
		Sidecar:   f.SidecarReady(ctx),
	}, nil
}
