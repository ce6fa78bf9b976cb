// Package cmd implements the filebridge CLI commands.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/config"
	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/log"
)

// Version information set at build time.
var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

// Global flags.
var (
	dirFlag = &cli.StringFlag{
		Name:  "dir",
		Usage: "Project directory containing " + config.FileName + " (default: nearest with filebridge.yaml or go.mod)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to this file instead of stderr",
	}
	codecFlag = &cli.StringFlag{
		Name:  "codec",
		Usage: "Channel codec: json, msgpack",
	}
)

// NewApp returns the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "filebridge",
		Usage:   "Open files and negotiate storage access for an application shell",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   []cli.Flag{dirFlag, logLevelFlag, logFileFlag, codecFlag},
		Commands: []*cli.Command{
			ServeCommand(),
			OpenCommand(),
			MimeCommand(),
			PermissionCommand(),
			DirsCommand(),
			VersionCommand(),
		},
	}
}

// env is the state shared by commands: resolved configuration and logger.
type env struct {
	cfg    *config.Resolved
	logger *zap.Logger
	close  func() error
}

// setup resolves configuration, applies flag overrides and builds the logger.
// The logger also receives reports from the global error handler.
func setup(c *cli.Context) (*env, error) {
	dir := c.String(dirFlag.Name)
	if dir == "" {
		root, err := config.FindProjectRoot()
		if err != nil {
			return nil, err
		}
		dir = root
	}

	cfg, err := config.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := c.String(logLevelFlag.Name); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(logFileFlag.Name); v != "" {
		cfg.LogFile = v
	}
	if v := c.String(codecFlag.Name); v != "" {
		cfg.Codec = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, closeLog, err := log.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	bridgeerrors.SetHandler(&bridgeerrors.LogHandler{Logger: logger, Verbose: cfg.LogLevel == "debug"})

	return &env{
		cfg:    cfg,
		logger: logger,
		close: func() error {
			_ = logger.Sync()
			return closeLog()
		},
	}, nil
}
