package permission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/telemetry"
)

// DefaultPollInterval is the fixed polling period used when callers pass zero.
const DefaultPollInterval = time.Second

// Change records one observed status transition.
type Change struct {
	Scope      string     `json:"scope,omitempty"`
	Permission Permission `json:"permission"`
	From       Status     `json:"from"`
	To         Status     `json:"to"`
	At         time.Time  `json:"at"`
}

// Observer is notified of every transition after a poll has been applied.
type Observer interface {
	PermissionChanged(change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(change Change)

func (f ObserverFunc) PermissionChanged(change Change) {
	f(change)
}

// Entry is one row of a Snapshot.
type Entry struct {
	Permission Permission `json:"permission"`
	Metadata   Metadata   `json:"metadata"`
	Status     Status     `json:"status"`
}

// Snapshot is a point-in-time copy of tracker state in set order.
type Snapshot struct {
	Scope      string    `json:"scope,omitempty"`
	Entries    []Entry   `json:"entries"`
	AllGranted bool      `json:"allGranted"`
	Polls      int       `json:"polls"`
	ObservedAt time.Time `json:"observedAt,omitempty"`
	Polling    bool      `json:"polling"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithHub publishes poll and change events to hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(t *Tracker) { t.hub = hub }
}

// WithSettingsOpener sets how grant requests navigate to system settings.
func WithSettingsOpener(opener SettingsOpener) Option {
	return func(t *Tracker) { t.settings = opener }
}

// WithObserver registers an observer at construction time.
func WithObserver(observer Observer) Option {
	return func(t *Tracker) {
		if observer != nil {
			t.observers = append(t.observers, observer)
		}
	}
}

// WithScope labels events with the consumer (for example "onboarding" or "skill:dictation").
func WithScope(scope string) Option {
	return func(t *Tracker) { t.scope = scope }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker owns the authorization status of a fixed permission set.
//
// Status changes only through Poll. RequestGrant forwards to the OS and leaves
// status alone. Stop invalidates any poll in flight, so nothing is applied
// after it returns.
type Tracker struct {
	required Set
	caps     Capabilities
	settings SettingsOpener
	logger   *logging.Logger
	hub      *telemetry.Hub
	scope    string
	now      func() time.Time

	// One poll in flight; extra callers are dropped, never queued.
	inflight *semaphore.Weighted

	mu         sync.RWMutex
	statuses   map[string]Status
	epoch      uint64
	polls      int
	observedAt time.Time
	observers  []Observer

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a tracker for required. Every member starts as StatusUnknown.
func New(required Set, caps Capabilities, opts ...Option) *Tracker {
	t := &Tracker{
		required: NewSet(required...),
		caps:     caps,
		now:      time.Now,
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.statuses = make(map[string]Status, len(t.required))
	for _, p := range t.required {
		t.statuses[p.Key()] = StatusUnknown
	}
	return t
}

// Required returns a copy of the tracked set.
func (t *Tracker) Required() Set {
	return append(Set(nil), t.required...)
}

// Scope returns the consumer label.
func (t *Tracker) Scope() string {
	return t.scope
}

// AddObserver registers an observer for subsequent polls.
func (t *Tracker) AddObserver(observer Observer) {
	if observer == nil {
		return
	}
	t.mu.Lock()
	t.observers = append(t.observers, observer)
	t.mu.Unlock()
}

// Status returns the last polled status of p; StatusUnknown before the first
// poll and for permissions outside the set.
func (t *Tracker) Status(p Permission) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if status, ok := t.statuses[p.Key()]; ok {
		return status
	}
	return StatusUnknown
}

// AllGranted is true when every required permission was granted at the last
// poll. An empty set is always ready.
func (t *Tracker) AllGranted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allGrantedLocked()
}

func (t *Tracker) allGrantedLocked() bool {
	for _, p := range t.required {
		if t.statuses[p.Key()] != StatusGranted {
			return false
		}
	}
	return true
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	snap := Snapshot{
		Scope:      t.scope,
		Entries:    make([]Entry, len(t.required)),
		AllGranted: t.allGrantedLocked(),
		Polls:      t.polls,
		ObservedAt: t.observedAt,
	}
	for i, p := range t.required {
		snap.Entries[i] = Entry{Permission: p, Metadata: p.Metadata(), Status: t.statuses[p.Key()]}
	}
	t.mu.RUnlock()
	snap.Polling = t.Polling()
	return snap
}

// RequestGrant asks the OS for p and, when the kind calls for it, opens the
// settings pane. It never changes status; the next poll observes the outcome.
func (t *Tracker) RequestGrant(ctx context.Context, p Permission) {
	key := p.Key()
	if !t.required.Contains(p) {
		_ = t.logger.Warn(logging.CategoryPermission, "request_ignored", "permission is not part of the tracked set", map[string]any{
			"permission": key,
			"scope":      t.scope,
		})
		return
	}

	telemetry.PermissionGrantRequests.WithLabelValues(string(p.Kind)).Inc()

	if capability := t.caps[p.Kind]; capability != nil {
		if err := capability.RequestAccess(ctx, p); err != nil {
			_ = t.logger.Warn(logging.CategoryPermission, "request_failed", err.Error(), map[string]any{
				"permission": key,
				"scope":      t.scope,
			})
		}
	}

	openedSettings := false
	if p.Metadata().OpensSettings && t.settings != nil {
		if err := t.settings.OpenSettings(ctx, p); err != nil {
			_ = t.logger.Warn(logging.CategoryPermission, "open_settings_failed", err.Error(), map[string]any{
				"permission": key,
			})
		} else {
			openedSettings = true
		}
	}

	_ = t.logger.Info(logging.CategoryPermission, "requested", "", map[string]any{
		"permission":      key,
		"scope":           t.scope,
		"opened_settings": openedSettings,
	})
	t.hub.Publish(telemetry.Event{
		Type:      telemetry.EventPermissionRequested,
		SessionID: t.logger.SessionID(),
		Scope:     t.scope,
		Data: map[string]any{
			"permission":     key,
			"openedSettings": openedSettings,
		},
	})
}

// Poll re-queries every required permission and applies all results at once.
// It returns false when the poll was dropped (another poll in flight) or
// discarded (ctx cancelled or Stop called while querying).
func (t *Tracker) Poll(ctx context.Context) bool {
	if !t.inflight.TryAcquire(1) {
		telemetry.PermissionPollsDropped.Inc()
		_ = t.logger.Debug(logging.CategoryPermission, "poll_dropped", "previous poll still in flight", map[string]any{"scope": t.scope})
		return false
	}
	defer t.inflight.Release(1)
	return t.poll(ctx)
}

// PollWait waits out a poll already in flight instead of being dropped, then
// polls. Callers that decide on fresh state use it; it returns false when ctx
// ends first or the results were discarded.
func (t *Tracker) PollWait(ctx context.Context) bool {
	if err := t.inflight.Acquire(ctx, 1); err != nil {
		return false
	}
	defer t.inflight.Release(1)
	return t.poll(ctx)
}

func (t *Tracker) poll(ctx context.Context) bool {
	t.mu.RLock()
	epoch := t.epoch
	t.mu.RUnlock()

	results := make(map[string]Status, len(t.required))
	for _, p := range t.required {
		if ctx.Err() != nil {
			return false
		}
		results[p.Key()] = t.query(ctx, p)
	}

	t.mu.Lock()
	if t.epoch != epoch || ctx.Err() != nil {
		t.mu.Unlock()
		return false
	}
	at := t.now()
	var changes []Change
	for _, p := range t.required {
		key := p.Key()
		next := results[key]
		if prev := t.statuses[key]; prev != next {
			changes = append(changes, Change{Scope: t.scope, Permission: p, From: prev, To: next, At: at})
		}
		t.statuses[key] = next
	}
	t.polls++
	t.observedAt = at
	allGranted := t.allGrantedLocked()
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	telemetry.PermissionPolls.Inc()
	for _, p := range t.required {
		value := 0.0
		if results[p.Key()] == StatusGranted {
			value = 1
		}
		telemetry.PermissionGranted.WithLabelValues(p.Key()).Set(value)
	}

	for _, change := range changes {
		_ = t.logger.Info(logging.CategoryPermission, "changed", fmt.Sprintf("%s %s -> %s", change.Permission.Key(), change.From, change.To), map[string]any{
			"permission": change.Permission.Key(),
			"from":       string(change.From),
			"to":         string(change.To),
			"scope":      t.scope,
		})
		t.hub.Publish(telemetry.Event{
			Type:      telemetry.EventPermissionChanged,
			Timestamp: change.At,
			SessionID: t.logger.SessionID(),
			Scope:     t.scope,
			Data: map[string]any{
				"permission": change.Permission.Key(),
				"from":       string(change.From),
				"to":         string(change.To),
			},
		})
		for _, observer := range observers {
			observer.PermissionChanged(change)
		}
	}

	t.hub.Publish(telemetry.Event{
		Type:      telemetry.EventPermissionPolled,
		Timestamp: at,
		SessionID: t.logger.SessionID(),
		Scope:     t.scope,
		Data: map[string]any{
			"allGranted": allGranted,
			"changes":    len(changes),
		},
	})
	return true
}

// query maps every failure mode of the OS primitive, including a panic, to denied.
func (t *Tracker) query(ctx context.Context, p Permission) (status Status) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = QueryUnavailable(p, fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			telemetry.PermissionQueryFailures.WithLabelValues(string(p.Kind)).Inc()
			_ = t.logger.Warn(logging.CategoryPermission, "query_unavailable", err.Error(), map[string]any{
				"permission": p.Key(),
				"scope":      t.scope,
			})
			status = StatusDenied
		}
	}()

	capability := t.caps[p.Kind]
	if capability == nil {
		err = QueryUnavailable(p, nil)
		return StatusDenied
	}
	status, err = capability.QueryStatus(ctx, p)
	if err != nil {
		return StatusDenied
	}
	if !status.Valid() {
		err = QueryUnavailable(p, fmt.Errorf("unrecognised status %q", status))
		return StatusDenied
	}
	return status
}

// Start polls immediately and then every interval until Stop is called or ctx
// is cancelled. Starting a running tracker restarts its loop.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	t.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	_ = t.logger.Debug(logging.CategoryPermission, "polling_started", "", map[string]any{
		"scope":    t.scope,
		"interval": interval.String(),
	})
	t.hub.Publish(telemetry.Event{Type: telemetry.EventPollingStarted, Scope: t.scope, SessionID: t.logger.SessionID()})

	go t.run(loopCtx, interval, done)
}

func (t *Tracker) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll(ctx)
		}
	}
}

// Stop cancels the polling loop. Any poll still in flight is discarded, so no
// status changes after Stop returns. Stop does not wait for a blocked OS query.
func (t *Tracker) Stop() {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	if t.stopLocked() {
		_ = t.logger.Debug(logging.CategoryPermission, "polling_stopped", "", map[string]any{"scope": t.scope})
		t.hub.Publish(telemetry.Event{Type: telemetry.EventPollingStopped, Scope: t.scope, SessionID: t.logger.SessionID()})
	}
}

func (t *Tracker) stopLocked() bool {
	t.mu.Lock()
	t.epoch++
	t.mu.Unlock()

	if t.cancel == nil {
		return false
	}
	t.cancel()
	t.cancel = nil
	return true
}

// Polling reports whether the loop is running.
func (t *Tracker) Polling() bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	if t.cancel == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the most recent loop exits. It stays
// valid after Stop; before the first Start it is already closed.
func (t *Tracker) Done() <-chan struct{} {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	if t.done == nil {
		return closedDone
	}
	return t.done
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
