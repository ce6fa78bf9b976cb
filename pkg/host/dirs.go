package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/log"
)

// Directories resolves the app's storage locations on a desktop host.
type Directories struct {
	// Files overrides the app-private directory.
	Files string
	// Downloads overrides the shared downloads directory.
	Downloads string
	// AppID names the per-user config subdirectory used when Files is empty.
	AppID  string
	Logger *zap.Logger
}

// FilesDir returns the app-private directory, creating it if needed.
func (d *Directories) FilesDir(context.Context) (string, error) {
	dir := d.Files
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate config dir: %w", err)
		}
		if d.AppID == "" {
			return "", fmt.Errorf("app id is required to derive the files dir")
		}
		dir = filepath.Join(base, d.AppID, "files")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create files dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	log.OrNop(d.Logger).Debug("files dir", zap.String("path", abs))
	return abs, nil
}

// PublicDownloadDir returns the shared downloads directory. It is not created.
func (d *Directories) PublicDownloadDir(context.Context) (string, error) {
	dir := d.Downloads
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate home dir: %w", err)
		}
		dir = filepath.Join(home, "Downloads")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	log.OrNop(d.Logger).Debug("downloads dir", zap.String("path", abs))
	return abs, nil
}
