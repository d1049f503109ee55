package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/you-humble/jobclient/internal/usecase"
)

const (
	defaultCfgPath  = "./configs/local.yaml"
	shutdownTimeout = 30 * time.Second
)

// ErrUsage marks a malformed command line.
var ErrUsage = errors.New("usage")

type app struct {
	di   *dependencyInjector
	cmd  command
	args []string
	out  io.Writer
}

func New(args []string) (*app, error) {
	fs := flag.NewFlagSet("jobclient", flag.ContinueOnError)
	cfgPath := fs.String("config", envOr("JOBCLIENT_CONFIG", defaultCfgPath), "path to the YAML config")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(fs)
		return nil, fmt.Errorf("%w: no command given", ErrUsage)
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		usage(fs)
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, rest[0])
	}

	return &app{
		di:   newDI(*cfgPath),
		cmd:  cmd,
		args: rest[1:],
		out:  os.Stdout,
	}, nil
}

func (a *app) Run(ctx context.Context) (err error) {
	a.di.Logger()

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if cerr := a.di.Close(closeCtx); cerr != nil {
			slog.Error("shutdown", slog.String("error", cerr.Error()))
			err = errors.Join(err, cerr)
		}
	}()

	if a.cmd.storesArtifacts {
		ttl := a.di.Config().Artifacts.TTL
		if err := a.di.ArtifactStore(ctx).CleanupOlderThan(ctx, ttl); err != nil {
			slog.Warn("artifact cleanup", slog.String("error", err.Error()))
		}
	}

	return a.cmd.run(ctx, a, a.args)
}

// ExitCode maps an error returned by New or Run to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, ErrUsage), usecase.IsValidation(err):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: jobclient [-config path] <command> [flags]\n\nCommands:\n")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n")
	fs.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
