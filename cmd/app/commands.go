package main

import (
	"slices"

	"github.com/urfave/cli/v3"
)

func getCommands(version string) []*cli.Command {
	return slices.Concat(
		getSystemCommands(version),
		getPipelineCommands(),
		getMaintenanceCommands(),
	)
}

// formatFlag is shared by every command that prints a result.
func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "output format (text, json)",
	}
}
