package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/odvcencio/flux/pkg/onboarding"
	"github.com/odvcencio/flux/pkg/telemetry"
	"github.com/odvcencio/flux/pkg/terminal"
)

func runOnboardCommand(ctx context.Context, opts *globalOptions, args []string) error {
	if len(args) > 0 && args[0] == "reset" {
		return runOnboardReset(opts, args[1:])
	}

	fs := flag.NewFlagSet("onboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "complete onboarding even with permissions missing")
	noWait := fs.Bool("no-wait", false, "do not wait for grants; fail if any permission is missing")
	timeout := fs.Duration("timeout", 0, "stop waiting for grants after this long (0 waits until interrupted)")
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

	completed, err := flow.Completed()
	if err != nil {
		return err
	}
	if completed && !*force {
		a.out.Success("Onboarding already completed")
		a.out.Dim("Run `flux onboard reset` to go through it again.")
		return nil
	}

	flow.Tracker().Poll(ctx)
	a.out.Header("Welcome to Flux")
	a.out.OnboardingSteps(flow.Steps())
	reportSidecar(ctx, a, flow)

	if !*force && !*noWait && !flow.Ready() {
		waitForGrants(ctx, a, flow, *timeout)
	}

	if err := flow.Complete(ctx, *force); err != nil {
		return err
	}
	if flow.Ready() {
		a.out.Success("Onboarding complete")
	} else {
		a.out.Warn("Onboarding completed with permissions missing")
	}
	return nil
}

// waitForGrants polls until every permission is granted, the timeout passes
// or ctx is cancelled. Completion is decided by the caller.
func waitForGrants(ctx context.Context, a *app, flow *onboarding.Flow, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	events, unsubscribe := a.hub.Subscribe()
	defer unsubscribe()

	spinner := terminal.NewSpinner(stdout, "Waiting for permissions")
	spinner.Track(flow.Tracker().Snapshot())
	spinner.Start()

	flow.Begin(ctx)
	defer flow.End()

	for {
		select {
		case <-ctx.Done():
			spinner.StopWithError("Stopped waiting for permissions")
			return
		case event, ok := <-events:
			if !ok {
				spinner.Stop()
				return
			}
			if event.Type != telemetry.EventPermissionPolled || event.Scope != onboarding.Scope {
				continue
			}
			snap := flow.Tracker().Snapshot()
			spinner.Track(snap)
			if snap.AllGranted {
				spinner.StopWithSuccess("All permissions granted")
				return
			}
		}
	}
}

func reportSidecar(ctx context.Context, a *app, flow *onboarding.Flow) {
	switch flow.SidecarReady(ctx) {
	case onboarding.SidecarReady:
		a.out.Success("Speech sidecar ready at %s", a.sidecar.BaseURL())
	case onboarding.SidecarUnavailable:
		a.out.Warn("Speech sidecar not reachable at %s. Dictation needs it running.", a.sidecar.BaseURL())
	}
}

func runOnboardReset(opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("onboard reset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
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
	if !*yes && !a.out.Confirm("Reset onboarding?", false) {
		a.out.Dim("Cancelled.")
		return nil
	}
	if err := flow.Reset(); err != nil {
		return err
	}
	a.out.Success("Onboarding reset. Run `flux onboard` to start again.")
	return nil
}

func runSkillsCommand(_ context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("skills", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print skills as JSON")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if *asJSON {
		return writeJSON(a.skills.List())
	}
	a.out.SkillList(a.skills.List())
	if dirs := a.skills.Dirs(); len(dirs) > 0 {
		a.out.Dim("Skill directories: %s", strings.Join(dirs, ", "))
	}
	return nil
}

func runSkillCommand(ctx context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("skill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the permission sheet as JSON")
	name, remaining := leadingName(args)
	if err := fs.Parse(remaining); err != nil {
		return withExitCode(err, exitUsage)
	}
	if name == "" && fs.NArg() > 0 {
		name, remaining = fs.Arg(0), fs.Args()[1:]
	} else {
		remaining = fs.Args()
	}
	if name == "" || len(remaining) > 0 {
		return withExitCode(errUsage("flux skill <name> [--json]"), exitUsage)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.skills.Lookup(name)
	if err != nil {
		return err
	}
	sheet, err := a.skills.PermissionSheet(name, a.caps, a.sheetOptions()...)
	if err != nil {
		return err
	}
	sheet.Poll(ctx)
	snap := sheet.Snapshot()

	if *asJSON {
		return writeJSON(snap)
	}
	return a.out.Skill(s, &snap)
}
