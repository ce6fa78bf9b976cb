package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lilu-red/filebridge/pkg/bridge"
)

// PermissionCommand returns the permission command.
func PermissionCommand() *cli.Command {
	return &cli.Command{
		Name:  "permission",
		Usage: "Evaluate storage access",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "request",
				Usage: "Request access when it is missing",
			},
		},
		Action: permissionAction,
	}
}

func permissionAction(c *cli.Context) error {
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

	if c.Bool("request") {
		reply, err := app.Endpoint.HandleCall(bridge.MethodRequestStoragePermission, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, reply)
		return nil
	}

	d, err := app.Permissions.Evaluate(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "tier:  %s\nstate: %s\n", d.Tier, d.State)
	return nil
}
