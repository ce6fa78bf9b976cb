package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/capability"
	"github.com/lilu-red/filebridge/pkg/config"
	"github.com/lilu-red/filebridge/pkg/grant"
	"github.com/lilu-red/filebridge/pkg/host"
	"github.com/lilu-red/filebridge/pkg/opener"
	"github.com/lilu-red/filebridge/pkg/permission"
	"github.com/lilu-red/filebridge/pkg/platform"
)

// App is a fully wired bridge.
type App struct {
	Endpoint    *Endpoint
	Opener      *opener.Dispatcher
	Permissions *permission.Manager
	Dirs        Directories

	stop []func()
}

// Close detaches the app from inbound permission results.
func (a *App) Close() {
	for _, fn := range a.stop {
		fn()
	}
	a.stop = nil
}

// NewNative wires the bridge to the channel-backed platform services, for
// an embedder that implements them natively.
func NewNative(cfg *config.Resolved, logger *zap.Logger) *App {
	dispatcher := &opener.Dispatcher{
		Issuer: &grant.Issuer{
			PackageID: cfg.AppID,
			Provider:  platform.Content,
			Resolver:  platform.Content,
			Logger:    logger,
		},
		Launcher: platform.Intents,
		Version:  platform.Device,
		Logger:   logger,
	}
	mgr := permission.NewManager(platform.Device, platform.StoragePermission, platform.StoragePermission, logger)

	unsubscribe := platform.StoragePermission.ListenResults(func(ev platform.PermissionResultEvent) {
		switch permission.Kind(ev.Kind) {
		case permission.KindRuntime:
			mgr.HandleRuntimeResult(ev.Token, ev.Granted)
		case permission.KindSettings:
			mgr.HandleSettingsReturn(ev.Token)
		}
	})

	return newApp(cfg, dispatcher, mgr, platform.Paths, logger, unsubscribe)
}

// NewHost wires the bridge to the desktop capability set. Without configured
// provider roots, the files and downloads directories are exposed.
func NewHost(ctx context.Context, cfg *config.Resolved, logger *zap.Logger) (*App, error) {
	dirs := &host.Directories{
		Files:     cfg.FilesDir,
		Downloads: cfg.DownloadsDir,
		AppID:     cfg.AppID,
		Logger:    logger,
	}
	files, err := dirs.FilesDir(ctx)
	if err != nil {
		return nil, err
	}
	downloads, err := dirs.PublicDownloadDir(ctx)
	if err != nil {
		return nil, err
	}

	roots := cfg.ProviderRoots
	if len(roots) == 0 {
		roots = []string{files, downloads}
	}
	provider := &host.FileProvider{Roots: roots}

	dispatcher := &opener.Dispatcher{
		Issuer: &grant.Issuer{
			PackageID: cfg.AppID,
			Provider:  provider,
			Resolver:  &host.ContentResolver{Provider: provider, Logger: logger},
			Logger:    logger,
		},
		Launcher: host.NewLauncher(cfg.Opener, provider, logger),
		Version:  capability.Fixed(cfg.SDK),
		Logger:   logger,
	}

	perms := &host.Permissions{Dir: downloads, Logger: logger}
	mgr := permission.NewManager(capability.Fixed(cfg.SDK), perms, perms, logger)
	perms.SetResultHandler(func(r host.Request) {
		switch r.Kind {
		case host.RequestRuntime:
			mgr.HandleRuntimeResult(r.Token, r.Granted)
		case host.RequestSettings:
			mgr.HandleSettingsReturn(r.Token)
		}
	})

	return newApp(cfg, dispatcher, mgr, dirs, logger, func() { perms.SetResultHandler(nil) }), nil
}

func newApp(cfg *config.Resolved, d *opener.Dispatcher, mgr *permission.Manager, dirs Directories, logger *zap.Logger, stop func()) *App {
	return &App{
		Endpoint: &Endpoint{
			Opener:       d,
			Permissions:  mgr,
			Dirs:         dirs,
			ChooserTitle: cfg.ChooserTitle,
			Logger:       logger,
		},
		Opener:      d,
		Permissions: mgr,
		Dirs:        dirs,
		stop:        []func(){stop},
	}
}

// Register binds the endpoint to the configured channel.
func (a *App) Register(cfg *config.Resolved) (*platform.MethodChannel, error) {
	if cfg.Channel == "" {
		return nil, fmt.Errorf("bridge: no channel configured")
	}
	return a.Endpoint.Register(cfg.Channel), nil
}
