package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/you-humble/jobclient/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	a, err := app.New(os.Args[1:])
	if err == nil {
		err = a.Run(ctx)
	}
	if err != nil && app.ExitCode(err) != 0 {
		fmt.Fprintln(os.Stderr, "jobclient:", err)
	}
	return app.ExitCode(err)
}
