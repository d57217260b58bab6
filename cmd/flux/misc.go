package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/flux/pkg/config"
	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/paths"
	"github.com/odvcencio/flux/pkg/terminal"
)

func runTranscriberCommand(ctx context.Context, opts *globalOptions, args []string) error {
	sub := "health"
	if len(args) > 0 {
		sub = args[0]
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	switch sub {
	case "health":
		spinner := terminal.NewSpinner(stdout, "Checking "+a.sidecar.BaseURL())
		spinner.Start()
		health, err := a.sidecar.Health(ctx)
		if err != nil {
			spinner.StopWithError("Speech sidecar unavailable")
			return err
		}
		if !health.Ready() {
			spinner.StopWithError(fmt.Sprintf("Speech sidecar reports %q", health.Status))
			return apperrors.New(apperrors.ErrCodeTranscriberUnavailable, "sidecar not ready")
		}
		spinner.StopWithSuccess("Speech sidecar ready at " + a.sidecar.BaseURL())
		return nil
	case "transcribe":
		if len(args) != 2 {
			return withExitCode(errUsage("flux transcriber transcribe <file.wav>"), exitUsage)
		}
		f, err := os.Open(args[1])
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "open audio file")
		}
		defer f.Close()
		text, err := a.sidecar.Transcribe(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, text)
		return nil
	default:
		return withExitCode(fmt.Errorf("unknown transcriber command: %s (use health or transcribe)", sub), exitUsage)
	}
}

func runConfigCommand(_ context.Context, opts *globalOptions, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "path":
		fmt.Fprintf(stdout, "user:    %s\n", filepath.Join(paths.HomeDir(), "config.yaml"))
		fmt.Fprintf(stdout, "project: %s\n", filepath.Join(paths.ProjectDir("."), "config.yaml"))
		return nil
	case "show", "check":
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		if sub == "check" {
			out := terminal.NewWithOutput(stdout)
			out.Success("Configuration is valid")
			for _, path := range []string{filepath.Join(paths.HomeDir(), "config.yaml"), filepath.Join(paths.ProjectDir("."), "config.yaml")} {
				if _, err := os.Stat(path); err == nil {
					out.Dim("loaded %s", path)
				} else if !errors.Is(err, os.ErrNotExist) {
					out.Warn("cannot read %s: %v", path, err)
				}
			}
			return nil
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	default:
		return withExitCode(fmt.Errorf("unknown config command: %s (use show, path, or check)", sub), exitUsage)
	}
}
