// Command app runs the CRM core: the API server, the outbox worker and the
// maintenance tasks operators schedule around them.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// Overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cli.Command{
		Name:                  "crmcore",
		Usage:                 "Multi-tenant roofing CRM core: pipeline, outbox and request guards",
		Version:               version,
		EnableShellCompletion: true,
		Commands:              getCommands(version),
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
