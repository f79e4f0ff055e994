package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/roofline/crmcore/cmd/app/commands"
	"github.com/roofline/crmcore/internal/app"
	"github.com/roofline/crmcore/internal/config"
)

// getSystemCommands returns the long-running processes and schema migration.
func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Serve the pipeline, approval, rule and outbox API",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Dispatch pending outbox events and purge expired guard state",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return commands.RunWorker(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending schema migrations for the configured driver",
			Action: func(ctx context.Context, _ *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer closeQuietly(ctx, container)

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
	}
}

func closeQuietly(ctx context.Context, container *app.Container) {
	_ = container.Shutdown(ctx)
}
