package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/bridge"
	"github.com/lilu-red/filebridge/pkg/platform"
	"github.com/lilu-red/filebridge/pkg/transport"
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve bridge calls over length-prefixed frames on stdin/stdout",
		Description: `Reads call frames from stdin and writes replies to stdout. Logs go to
stderr or --log-file; nothing else is written to stdout.

By default the desktop capability set opens files and answers permission
requests. With --native, the peer implements the intent, content,
permission, device and path channels itself.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "native",
				Usage: "Use capabilities implemented by the peer",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	codec, err := platform.CodecByName(e.cfg.Codec)
	if err != nil {
		return err
	}
	platform.SetDefaultCodec(codec)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := transport.NewSession(os.Stdin, os.Stdout, codec, e.logger)
	native := c.Bool("native")

	var app *bridge.App
	if native {
		app = bridge.NewNative(e.cfg, e.logger)
	} else {
		app, err = bridge.NewHost(ctx, e.cfg, e.logger)
		if err != nil {
			return err
		}
	}
	defer app.Close()

	if _, err := app.Register(e.cfg); err != nil {
		return err
	}

	e.logger.Info("serving",
		zap.String("channel", e.cfg.Channel),
		zap.String("codec", e.cfg.Codec),
		zap.Bool("native", native),
		zap.String("app_id", e.cfg.AppID),
	)

	if native {
		// Connecting starts the permission result stream, which needs the
		// reader running; inbound calls wait until it is done.
		session.OnServe = func() { platform.SetNativeBridge(session) }
		defer platform.SetNativeBridge(nil)
	}

	errc := make(chan error, 1)
	go func() { errc <- session.Serve(ctx) }()

	if err := <-errc; err != nil && err != context.Canceled {
		return fmt.Errorf("serve: %w", err)
	}
	e.logger.Info("session ended")
	return nil
}
