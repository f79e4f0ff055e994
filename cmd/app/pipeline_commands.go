package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/roofline/crmcore/cmd/app/commands"
	"github.com/roofline/crmcore/internal/app"
	"github.com/roofline/crmcore/internal/config"
)

func getPipelineCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "seed-rules",
			Usage: "Install transition rules for a tenant from a YAML file or the built-in defaults",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "tenant",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Tenant ID (UUID)",
				},
				&cli.StringFlag{
					Name:  "file",
					Usage: "YAML rule file (omit for the built-in roofing defaults)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer closeQuietly(ctx, container)

				ruleUseCase, err := container.RuleUseCase()
				if err != nil {
					return err
				}

				return commands.RunSeedRules(
					ctx,
					ruleUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("tenant"),
					cmd.String("file"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cancel-event",
			Usage: "Cancel a pending or failed outbox event",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "tenant",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Tenant ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Event ID (UUID)",
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

				return commands.RunCancelEvent(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("tenant"),
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
	}
}
