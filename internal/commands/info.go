package commands

import (
	"fmt"
	"runtime"

	"github.com/Swind/go-task-manager/core"
	"github.com/urfave/cli/v2"
)

func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show the detected worker count and defaults",
		Action: InfoAction,
	}
}

func InfoAction(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "cpus:             %d\n", runtime.NumCPU())
	fmt.Fprintf(c.App.Writer, "default workers:  %d\n", core.DetectWorkerCount())
	fmt.Fprintf(c.App.Writer, "recheck interval: %v\n", core.DefaultRecheckInterval)
	return nil
}
