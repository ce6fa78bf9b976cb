// Package opener asks the platform to open a file in another application.
//
// An open request issues a fresh access grant, builds a view intent, checks
// that some installed application can handle it, and launches it either
// through the platform's default resolution or a forced app chooser. Success
// means the launch was issued; what the other application does afterwards is
// not observable.
package opener

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/capability"
	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/grant"
	"github.com/lilu-red/filebridge/pkg/intent"
	"github.com/lilu-red/filebridge/pkg/log"
)

// MessageNotSupported is reported when no application can open the file.
const MessageNotSupported = "operation not supported"

// ErrNoHandler is the error form of a NoHandlerFound outcome.
var ErrNoHandler = errors.New(MessageNotSupported)

// Launcher starts intents on the platform.
type Launcher interface {
	// CanResolve reports whether any installed application handles in.
	CanResolve(ctx context.Context, in *intent.Intent) (bool, error)
	// Start launches in. A chooser intent shows the app chooser.
	Start(ctx context.Context, in *intent.Intent) error
}

// OutcomeKind classifies an Outcome.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	NoHandlerFound
	PlatformError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case NoHandlerFound:
		return "no_handler_found"
	case PlatformError:
		return "platform_error"
	default:
		return "unknown"
	}
}

// Outcome is the single result of an open request.
type Outcome struct {
	Kind OutcomeKind
	// Message is the error detail for failures.
	Message string
}

// Err returns nil on success, ErrNoHandler when no handler exists, or an
// error carrying the platform message.
func (o Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case NoHandlerFound:
		return ErrNoHandler
	default:
		return errors.New(o.Message)
	}
}

// Callbacks receive the outcome of OpenWithCallbacks. Exactly one is called.
// OnError receives Outcome.Err: ErrNoHandler when no application can open the
// file, otherwise an error whose text is the platform message.
type Callbacks struct {
	OnError   func(err error)
	OnSuccess func()
}

type options struct {
	chooserTitle string
	chooser      bool
}

// Option configures a single open request.
type Option func(*options)

// WithChooser forces the app chooser, labeled with title.
func WithChooser(title string) Option {
	return func(o *options) {
		o.chooser = true
		o.chooserTitle = title
	}
}

// Dispatcher opens files.
type Dispatcher struct {
	Issuer   *grant.Issuer
	Launcher Launcher
	Version  capability.VersionSource
	Logger   *zap.Logger
}

// Open opens path and returns its outcome. Panics raised by the platform
// layer are recovered and reported as PlatformError.
func (d *Dispatcher) Open(ctx context.Context, path string, opts ...Option) (out Outcome) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	defer bridgeerrors.RecoverWithCallback("opener.Open", func(r any) {
		out = Outcome{Kind: PlatformError, Message: fmt.Sprint(r)}
	})

	out = d.open(ctx, path, o)
	if out.Kind == PlatformError {
		log.OrNop(d.Logger).Warn("open failed", zap.String("path", path), zap.String("error", out.Message))
	}
	return out
}

// OpenWithCallbacks is Open with the outcome delivered to cb.
func (d *Dispatcher) OpenWithCallbacks(ctx context.Context, path string, cb Callbacks, opts ...Option) {
	out := d.Open(ctx, path, opts...)
	if out.Kind == Success {
		if cb.OnSuccess != nil {
			cb.OnSuccess()
		}
		return
	}
	if cb.OnError != nil {
		cb.OnError(out.Err())
	}
}

func (d *Dispatcher) open(ctx context.Context, path string, o options) Outcome {
	logger := log.OrNop(d.Logger)

	tiers, err := capability.Current(ctx, d.Version)
	if err != nil {
		return platformError(err)
	}

	g, err := d.Issuer.Issue(ctx, tiers.Handle, path)
	if err != nil {
		return platformError(err)
	}

	view := intent.New(intent.ActionView)
	g.Apply(view)

	ok, err := d.Launcher.CanResolve(ctx, view)
	if err != nil {
		return platformError(err)
	}
	if !ok {
		logger.Info("no application can open file", zap.String("path", path), zap.String("mime", g.MimeType))
		return Outcome{Kind: NoHandlerFound, Message: MessageNotSupported}
	}

	view.AddFlags(intent.FlagActivityNewTask)
	launch := view
	if o.chooser {
		launch = intent.CreateChooser(view, o.chooserTitle)
	}
	if err := d.Launcher.Start(ctx, launch); err != nil {
		return platformError(err)
	}

	logger.Info("file launch issued",
		zap.String("path", path),
		zap.String("handle", g.Handle),
		zap.String("mime", g.MimeType),
		zap.Bool("chooser", o.chooser))
	return Outcome{Kind: Success}
}

func platformError(err error) Outcome {
	return Outcome{Kind: PlatformError, Message: err.Error()}
}
