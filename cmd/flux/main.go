package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

type globalOptions struct {
	configPath string
	args       []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	opts, err := parseGlobalOptions(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return dispatchSubcommand(ctx, opts)
}

func parseGlobalOptions(raw []string) (*globalOptions, error) {
	opts := &globalOptions{}
	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "--config" || arg == "-c":
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("%s requires a path", arg)
			}
			i++
			opts.configPath = raw[i]
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
		default:
			opts.args = append(opts.args, raw[i:]...)
			return opts, nil
		}
	}
	return opts, nil
}

// leadingName splits off a positional name given before the flags, since flag
// stops parsing at the first non-flag argument.
func leadingName(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func dispatchSubcommand(ctx context.Context, opts *globalOptions) int {
	args := opts.args
	if len(args) == 0 {
		printHelp()
		return exitUsage
	}

	type handler func(ctx context.Context, opts *globalOptions, args []string) error
	var h handler
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "status":
		h = runStatusCommand
	case "request":
		h = runRequestCommand
	case "watch":
		h = runWatchCommand
	case "onboard":
		h = runOnboardCommand
	case "skills":
		h = runSkillsCommand
	case "skill":
		h = runSkillCommand
	case "history":
		h = runHistoryCommand
	case "serve":
		h = runServeCommand
	case "transcriber":
		h = runTranscriberCommand
	case "config":
		h = runConfigCommand
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(stderr, "Run 'flux --help' for usage.")
		return exitUsage
	}

	if err := h(ctx, opts, args[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printVersion() {
	fmt.Fprintf(stdout, "flux %s (%s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Fprint(stdout, `flux - macOS permission onboarding and skill runtime

Usage:
  flux [--config path] <command> [flags]

Commands:
  status [--json] [--check]        Poll once and show the required permissions
  request <permission>             Ask macOS for a permission (status updates on the next poll)
  watch [--interval d] [--until-granted]
                                   Poll continuously and print every change
  onboard [--force] [--no-wait] [--timeout d]
                                   Walk through granting the required permissions
  onboard reset [--yes]            Forget that onboarding was completed
  skills                           List installed skills
  skill <name> [--json]            Show a skill and the state of its permissions
  history [--permission p] [--limit n] [--json]
                                   Show recorded permission changes
  serve [--addr host:port]         Run the local API for the onboarding and skill views
  transcriber health               Check the speech sidecar
  transcriber transcribe <file.wav>
                                   Send audio to the speech sidecar
  config [show|path|check]         Inspect configuration
  version                          Print version information

Permissions: accessibility, screenRecording, microphone, automation:<bundle id>
`)
}
