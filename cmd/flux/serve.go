package main

import (
	"context"
	"flag"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/flux/pkg/api"
	"github.com/odvcencio/flux/pkg/skill"
)

type apiServer interface {
	Start(ctx context.Context) error
}

var newServerFn = func(cfg api.ServerConfig) apiServer {
	return api.NewServer(cfg)
}

// runServeCommand runs the local API and keeps the skill registry in sync with
// the skill directories until interrupted.
func runServeCommand(ctx context.Context, opts *globalOptions, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "address to bind (default from config, loopback only)")
	noWatch := fs.Bool("no-watch", false, "do not reload skills when their files change")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if *addr != "" {
		a.cfg.Server.ListenAddr = *addr
		if err := a.cfg.Validate(); err != nil {
			return withExitCode(err, exitUsage)
		}
	}

	flow, err := a.onboarding()
	if err != nil {
		return withExitCode(err, exitUsage)
	}

	server := newServerFn(api.ServerConfig{
		Address:      a.cfg.Server.ListenAddr,
		Onboarding:   flow,
		Skills:       a.skills,
		Capabilities: a.caps,
		SheetOptions: a.sheetOptions(),
		PollInterval: a.cfg.PollInterval(),
		Hub:          a.hub,
		Logger:       a.logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	if !*noWatch {
		g.Go(func() error {
			return skill.Watch(ctx, a.skills, a.skills.Dirs())
		})
	}

	a.out.Info("Serving the flux API on http://%s", a.cfg.Server.ListenAddr)
	return g.Wait()
}
