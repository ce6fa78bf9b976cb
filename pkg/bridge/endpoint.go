// Package bridge exposes file opening, storage permission and directory
// lookups as methods on a platform channel.
package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/log"
	"github.com/lilu-red/filebridge/pkg/opener"
	"github.com/lilu-red/filebridge/pkg/permission"
	"github.com/lilu-red/filebridge/pkg/platform"
)

// Method names.
const (
	MethodGetDirectory               = "getDirectory"
	MethodGetPublicDownloadDirectory = "getPublicDownloadDirectory"
	MethodOpen                       = "open"
	MethodRequestStoragePermission   = "requestStoragePermission"
)

// ArgFilePath is the argument of MethodOpen.
const ArgFilePath = "filePath"

// Replies of MethodRequestStoragePermission.
const (
	ReplyPermissionGranted = "已有权限"
	ReplyPermissionMissing = "没有权限"
)

// Error codes sent to the caller.
const (
	CodeMissingArgument = "missing_argument"
	CodeUnsupported     = "unsupported"
	CodePlatformError   = "platform_error"
)

// FileOpener opens files and reports exactly one outcome per request.
type FileOpener interface {
	OpenWithCallbacks(ctx context.Context, path string, cb opener.Callbacks, opts ...opener.Option)
}

// StorageAccess evaluates storage access and requests it when missing.
type StorageAccess interface {
	EvaluateAndRequest(ctx context.Context) (permission.Decision, string, error)
}

// Directories resolves the app's storage locations.
type Directories interface {
	FilesDir(ctx context.Context) (string, error)
	PublicDownloadDir(ctx context.Context) (string, error)
}

// Endpoint answers bridge method calls.
type Endpoint struct {
	Opener      FileOpener
	Permissions StorageAccess
	Dirs        Directories
	// ChooserTitle forces the app chooser on open. Empty launches the default handler.
	ChooserTitle string
	Logger       *zap.Logger
}

// Register binds the endpoint to the method channel called name.
func (e *Endpoint) Register(name string) *platform.MethodChannel {
	ch := platform.NewMethodChannel(name)
	ch.SetHandler(e.HandleCall)
	return ch
}

// HandleCall implements platform.MethodHandler. Unknown methods return
// platform.ErrMethodNotFound.
func (e *Endpoint) HandleCall(method string, args any) (any, error) {
	ctx := context.Background()
	switch method {
	case MethodGetDirectory:
		return e.directory(ctx, "files", e.Dirs.FilesDir)
	case MethodGetPublicDownloadDirectory:
		return e.directory(ctx, "downloads", e.Dirs.PublicDownloadDir)
	case MethodOpen:
		return e.open(ctx, args)
	case MethodRequestStoragePermission:
		return e.requestStoragePermission(ctx), nil
	default:
		e.report("bridge."+method, bridgeerrors.KindUnimplemented, platform.ErrMethodNotFound)
		return nil, platform.ErrMethodNotFound
	}
}

func (e *Endpoint) directory(ctx context.Context, name string, get func(context.Context) (string, error)) (any, error) {
	dir, err := get(ctx)
	if err != nil {
		e.report("bridge."+name+"Dir", bridgeerrors.KindPlatform, err)
		return nil, platform.NewChannelError(CodePlatformError, err.Error())
	}
	log.OrNop(e.Logger).Info("directory", zap.String("name", name), zap.String("path", dir))
	return dir, nil
}

func (e *Endpoint) open(ctx context.Context, args any) (any, error) {
	path, ok := stringArg(args, ArgFilePath)
	if !ok {
		err := platform.NewChannelError(CodeMissingArgument, ArgFilePath)
		e.report("bridge.open", bridgeerrors.KindMissingArgument, err)
		return nil, err
	}

	var opts []opener.Option
	if e.ChooserTitle != "" {
		opts = append(opts, opener.WithChooser(e.ChooserTitle))
	}

	var reply error
	e.Opener.OpenWithCallbacks(ctx, path, opener.Callbacks{
		OnSuccess: func() {},
		OnError: func(err error) {
			if errors.Is(err, opener.ErrNoHandler) {
				reply = platform.NewChannelError(CodeUnsupported, err.Error())
				e.report("bridge.open", bridgeerrors.KindNoHandler, reply)
				return
			}
			reply = platform.NewChannelError(CodePlatformError, err.Error())
			e.report("bridge.open", bridgeerrors.KindPlatform, reply)
		},
	}, opts...)
	if reply != nil {
		return nil, reply
	}
	return "", nil
}

// requestStoragePermission always answers with one of the two replies. A
// failed evaluation or request is reported and answered as missing.
func (e *Endpoint) requestStoragePermission(ctx context.Context) string {
	d, token, err := e.Permissions.EvaluateAndRequest(ctx)
	if err != nil {
		e.report("bridge.requestStoragePermission", bridgeerrors.KindPlatform, err)
		return ReplyPermissionMissing
	}
	if d.Granted() {
		return ReplyPermissionGranted
	}
	log.OrNop(e.Logger).Info("storage permission missing",
		zap.String("state", d.State.String()),
		zap.String("tier", d.Tier.String()),
		zap.String("token", token))
	return ReplyPermissionMissing
}

func (e *Endpoint) report(op string, kind bridgeerrors.ErrorKind, err error) {
	bridgeerrors.Report(&bridgeerrors.BridgeError{
		Op:   op,
		Kind: kind,
		Err:  err,
	})
}

// stringArg returns a non-empty string argument from a decoded argument map.
func stringArg(args any, key string) (string, bool) {
	var v any
	switch m := args.(type) {
	case map[string]any:
		v = m[key]
	case map[any]any:
		v = m[key]
	default:
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
