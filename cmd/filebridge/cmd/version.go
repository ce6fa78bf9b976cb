package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "filebridge %s (commit: %s)\n", Version, Commit)
			return nil
		},
	}
}
