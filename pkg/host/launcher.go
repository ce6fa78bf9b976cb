package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/intent"
	"github.com/lilu-red/filebridge/pkg/log"
)

// DefaultOpener returns the system command that opens a file with its
// default application.
func DefaultOpener() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

// Launcher starts view intents with the system opener. Desktop hosts have
// no chooser, so a chooser intent launches its target with the default
// application.
type Launcher struct {
	Command  []string
	Provider *FileProvider
	Logger   *zap.Logger

	lookPath func(file string) (string, error)
	run      func(name string, args ...string) error
}

// NewLauncher returns a launcher using command, or DefaultOpener when
// command is empty. The command is split on whitespace.
func NewLauncher(command string, provider *FileProvider, logger *zap.Logger) *Launcher {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		argv = DefaultOpener()
	}
	return &Launcher{
		Command:  argv,
		Provider: provider,
		Logger:   logger,
		lookPath: exec.LookPath,
		run:      startDetached,
	}
}

// CanResolve reports whether the opener is installed and the intent's file exists.
func (l *Launcher) CanResolve(_ context.Context, in *intent.Intent) (bool, error) {
	target, err := l.target(in)
	if err != nil {
		return false, err
	}
	if target.Action != intent.ActionView {
		return false, nil
	}
	if _, err := l.lookPath(l.Command[0]); err != nil {
		log.OrNop(l.Logger).Debug("opener not found", zap.String("command", l.Command[0]), zap.Error(err))
		return false, nil
	}
	path, err := localPath(l.Provider, target.Data)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	return true, nil
}

// Start runs the opener for the intent's file and returns once it has started.
func (l *Launcher) Start(_ context.Context, in *intent.Intent) error {
	logger := log.OrNop(l.Logger)
	target, err := l.target(in)
	if err != nil {
		return err
	}
	if in.IsChooser() {
		title, _ := in.Extra(intent.ExtraTitle)
		logger.Info("no chooser on this host, using default application", zap.Any("title", title))
	}
	path, err := localPath(l.Provider, target.Data)
	if err != nil {
		return err
	}
	args := append(append([]string{}, l.Command[1:]...), path)
	if err := l.run(l.Command[0], args...); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.Command[0], err)
	}
	logger.Info("opened file",
		zap.String("path", path),
		zap.String("type", target.Type),
		zap.String("command", l.Command[0]),
	)
	return nil
}

func (l *Launcher) target(in *intent.Intent) (*intent.Intent, error) {
	if in == nil {
		return nil, errors.New("nil intent")
	}
	if len(l.Command) == 0 {
		return nil, errors.New("no opener command configured")
	}
	if !in.IsChooser() {
		return in, nil
	}
	target, ok := in.Target()
	if !ok {
		return nil, errors.New("chooser intent without target")
	}
	return target, nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
