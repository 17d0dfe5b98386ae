// Package main is the entry point for the kiln CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/app"
	_ "go.trai.ch/kiln/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// The sink is not available yet if initialization failed.
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return 1
	}
	defer components.Engine.Close() //nolint:errcheck // flushing on exit is best effort

	cli := commands.New(components)
	if err := cli.Execute(ctx); err != nil {
		// zerr prints a full report with metadata when formatted with %+v.
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return commands.ExitCode(err)
	}
	return 0
}
