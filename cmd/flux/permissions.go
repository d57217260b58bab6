package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/storage"
	"github.com/odvcencio/flux/pkg/telemetry"
)

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStatusCommand(ctx context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the snapshot as JSON")
	check := fs.Bool("check", false, "exit with status 3 unless every permission is granted")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	flow, err := a.onboarding()
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	tracker := flow.Tracker()
	tracker.Poll(ctx)
	snap := tracker.Snapshot()

	completed, err := flow.Completed()
	if err != nil {
		return err
	}

	if *asJSON {
		if err := writeJSON(struct {
			permission.Snapshot
			OnboardingCompleted bool `json:"onboardingCompleted"`
		}{snap, completed}); err != nil {
			return err
		}
	} else {
		a.out.Header("Permissions")
		a.out.PermissionTable(snap)
		if !completed {
			a.out.Dim("Onboarding has not been completed. Run `flux onboard`.")
		}
	}

	if *check && !snap.AllGranted {
		return withExitCode(errors.New("not every required permission is granted"), exitNotGranted)
	}
	return nil
}

// promptWait bounds how long `flux request` stays alive for an open consent prompt.
var promptWait = 2 * time.Minute

// runRequestCommand forwards a grant request. The tracker's status is not
// touched; the user sees the outcome on the next status or watch.
func runRequestCommand(ctx context.Context, opts *globalOptions, args []string) error {
	if len(args) != 1 {
		return withExitCode(errUsage("flux request <permission>"), exitUsage)
	}
	p, err := permission.Parse(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	tracker := a.tracker("cli", permission.NewSet(p))
	tracker.RequestGrant(ctx, p)
	if err := a.store.RecordAuditLog("user", "cli", "grant_requested", map[string]any{"permission": p.Key()}); err != nil {
		_ = a.logger.Warn(logging.CategoryStorage, "audit_failed", err.Error(), nil)
	}

	md := p.Metadata()
	if md.OpensSettings {
		a.out.Info("Opened System Settings at %s. Enable Flux there.", md.DisplayName)
	} else {
		a.out.Info("Asked macOS for %s access. Answer the system prompt.", md.DisplayName)
	}

	// Prompts answered in the background die with the process.
	waitCtx, cancel := context.WithTimeout(ctx, promptWait)
	defer cancel()
	if err := a.caps.WaitPrompts(waitCtx); err != nil {
		a.out.Warn("stopped waiting for the system prompt after %s", promptWait)
	}

	a.out.Dim("Run `flux status` or `flux watch` to see the result.")
	return nil
}

func runWatchCommand(ctx context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	interval := fs.Duration("interval", 0, "poll interval (default from config)")
	untilGranted := fs.Bool("until-granted", false, "exit once every permission is granted")
	asJSON := fs.Bool("json", false, "print events as JSON lines")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	flow, err := a.onboarding()
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	tracker := flow.Tracker()

	every := a.cfg.PollInterval()
	if *interval > 0 {
		every = *interval
	}

	events, unsubscribe := a.hub.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if *asJSON {
					if err := writeJSON(event); err != nil {
						return err
					}
				} else {
					renderWatchEvent(a, event)
				}
				if *untilGranted && event.Type == telemetry.EventPermissionPolled && tracker.AllGranted() {
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		tracker.Start(ctx, every)
		select {
		case <-ctx.Done():
		case <-done:
		}
		tracker.Stop()
		return nil
	})

	if !*asJSON {
		a.out.Dim("Polling every %s. Press Ctrl+C to stop.", every)
	}
	return g.Wait()
}

func renderWatchEvent(a *app, event telemetry.Event) {
	switch event.Type {
	case telemetry.EventPermissionChanged:
		key, _ := event.Data["permission"].(string)
		from, _ := event.Data["from"].(string)
		to, _ := event.Data["to"].(string)
		line := fmt.Sprintf("%s  %s: %s → %s", event.Timestamp.Format(time.TimeOnly), key, from, to)
		if permission.Status(to) == permission.StatusGranted {
			a.out.Success("%s", line)
		} else {
			a.out.Warn("%s", line)
		}
	case telemetry.EventPermissionPolled:
		if granted, _ := event.Data["allGranted"].(bool); granted {
			if changes, _ := event.Data["changes"].(int); changes > 0 {
				a.out.Success("All permissions granted")
			}
		}
	}
}

func runHistoryCommand(_ context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	perm := fs.String("permission", "", "only show this permission")
	limit := fs.Int("limit", 50, "maximum number of events")
	asJSON := fs.Bool("json", false, "print events as JSON")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	filter := storage.PermissionEventFilter{Limit: *limit}
	if *perm != "" {
		p, err := permission.Parse(*perm)
		if err != nil {
			return err
		}
		filter.Permission = p.Key()
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.store.ListPermissionEvents(filter)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "list permission events")
	}
	if *asJSON {
		return writeJSON(events)
	}
	if len(events) == 0 {
		a.out.Dim("No permission changes recorded.")
		return nil
	}
	for _, event := range events {
		a.out.Println("%s  %-28s %-8s → %-8s %s",
			event.ObservedAt.Local().Format(time.DateTime),
			event.Permission, event.From, event.To, event.Scope)
	}
	return nil
}
