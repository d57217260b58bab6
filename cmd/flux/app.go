package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/flux/pkg/config"
	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/onboarding"
	"github.com/odvcencio/flux/pkg/paths"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/permission/macos"
	"github.com/odvcencio/flux/pkg/skill"
	"github.com/odvcencio/flux/pkg/storage"
	"github.com/odvcencio/flux/pkg/telemetry"
	"github.com/odvcencio/flux/pkg/terminal"
	"github.com/odvcencio/flux/pkg/transcriber"
)

// Seams for tests; the defaults talk to the real OS.
var (
	newCapabilitiesFn   = macos.NewCapabilities
	newSettingsOpenerFn = func() permission.SettingsOpener { return macos.NewSettingsOpener(nil) }
)

// app holds the dependencies every command shares.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   *storage.Store
	hub     *telemetry.Hub
	out     *terminal.Writer
	caps    permission.Capabilities
	opener  permission.SettingsOpener
	skills  *skill.Registry
	sidecar *transcriber.Client
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(opts.configPath) != "" {
		cfg, err = config.LoadFromPath(paths.ExpandHome(opts.configPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, withExitCode(err, exitUsage)
	}
	return cfg, nil
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, logging.NewSessionID())
	if err != nil {
		return nil, err
	}
	logger.SetMinLevel(cfg.LogLevel())

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	store.SetLogger(logger)

	hub := telemetry.NewHub()

	skills := skill.NewRegistry(
		skill.WithDirs(paths.UserSkillsDir(), paths.ProjectSkillsDir(".")),
		skill.WithLogger(logger),
		skill.WithHub(hub),
	)
	if err := skills.LoadAll(); err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		hub:    hub,
		out:    terminal.NewWithOutput(stdout),
		caps:   newCapabilitiesFn(),
		opener: newSettingsOpenerFn(),
		skills: skills,
		sidecar: transcriber.New(cfg.Transcriber.URL,
			transcriber.WithTimeout(cfg.Transcriber.Timeout),
			transcriber.WithLogger(logger)),
	}, nil
}

func (a *app) Close() {
	a.hub.Close()
	_ = a.store.Close()
	_ = a.logger.Close()
}

// sheetOptions are shared by every tracker: grant requests open settings and
// every transition is persisted.
func (a *app) sheetOptions() []permission.Option {
	return []permission.Option{
		permission.WithSettingsOpener(a.opener),
		permission.WithObserver(a.store.PermissionObserver(a.logger.SessionID())),
	}
}

func (a *app) tracker(scope string, required permission.Set) *permission.Tracker {
	opts := append([]permission.Option{
		permission.WithScope(scope),
		permission.WithLogger(a.logger),
		permission.WithHub(a.hub),
	}, a.sheetOptions()...)
	return permission.New(required, a.caps, opts...)
}

// onboarding builds the flow over the configured required set.
func (a *app) onboarding() (*onboarding.Flow, error) {
	required, err := a.cfg.RequiredPermissions()
	if err != nil {
		return nil, err
	}
	opts := []onboarding.Option{
		onboarding.WithInterval(a.cfg.PollInterval()),
		onboarding.WithLogger(a.logger),
		onboarding.WithHub(a.hub),
	}
	if !a.cfg.Onboarding.SkipSidecarCheck {
		opts = append(opts, onboarding.WithSidecar(a.sidecar))
	}
	return onboarding.New(a.tracker(onboarding.Scope, required), a.store, opts...), nil
}
