// Package commands wires the taskmanager CLI.
package commands

import "github.com/urfave/cli/v2"

// NewApp returns the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "taskmanager",
		Usage: "Drive a readiness-gated worker pool",
		Commands: []*cli.Command{
			RunCommand(),
			InfoCommand(),
		},
	}
}
