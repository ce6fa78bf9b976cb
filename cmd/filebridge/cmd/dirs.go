package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lilu-red/filebridge/pkg/bridge"
)

// DirsCommand returns the dirs command.
func DirsCommand() *cli.Command {
	return &cli.Command{
		Name:   "dirs",
		Usage:  "Show the app-private and public downloads directories",
		Action: dirsAction,
	}
}

func dirsAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	app, err := bridge.NewHost(c.Context, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer app.Close()

	files, err := app.Dirs.FilesDir(c.Context)
	if err != nil {
		return err
	}
	downloads, err := app.Dirs.PublicDownloadDir(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "files:     %s\ndownloads: %s\n", files, downloads)
	return nil
}
