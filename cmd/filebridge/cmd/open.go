package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lilu-red/filebridge/pkg/bridge"
	"github.com/lilu-red/filebridge/pkg/opener"
)

// OpenCommand returns the open command.
func OpenCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a file with the default application",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chooser",
				Usage: "Force the app chooser with this title",
			},
		},
		Action: openAction,
	}
}

func openAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("path required", 1)
	}
	path, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}

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

	var opts []opener.Option
	if title := c.String("chooser"); title != "" {
		opts = append(opts, opener.WithChooser(title))
	}

	out := app.Opener.Open(c.Context, path, opts...)
	switch out.Kind {
	case opener.Success:
		fmt.Fprintf(c.App.Writer, "opened %s\n", path)
		return nil
	case opener.NoHandlerFound:
		return cli.Exit(opener.MessageNotSupported, 2)
	default:
		return cli.Exit(out.Message, 1)
	}
}
