package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/roofline/crmcore/cmd/app/commands"
	"github.com/roofline/crmcore/internal/app"
	"github.com/roofline/crmcore/internal/config"
)

func getMaintenanceCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "archive-outbox-events",
			Usage: "Move processed outbox events older than specified days to the archive",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "days",
					Aliases: []string{"d"},
					Value:   30,
					Usage:   "Archive events processed more than this many days ago",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many events would be archived without moving them",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer closeQuietly(ctx, container)

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunArchiveOutboxEvents(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "purge-idempotency-keys",
			Usage: "Delete expired idempotency records",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer closeQuietly(ctx, container)

				idempotencyUseCase, err := container.IdempotencyUseCase()
				if err != nil {
					return err
				}

				return commands.RunPurgeIdempotencyKeys(
					ctx,
					idempotencyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "purge-rate-limits",
			Usage: "Delete rate limit windows older than the configured retention",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer closeQuietly(ctx, container)

				rateLimitUseCase, err := container.RateLimitUseCase()
				if err != nil {
					return err
				}

				return commands.RunPurgeRateLimits(
					ctx,
					rateLimitUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cfg.RateLimitRetention,
					cmd.String("format"),
				)
			},
		},
	}
}
