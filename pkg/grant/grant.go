// Package grant issues the file handle and MIME type handed to the platform
// launcher when a file is opened.
package grant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/capability"
	"github.com/lilu-red/filebridge/pkg/intent"
	"github.com/lilu-red/filebridge/pkg/log"
	"github.com/lilu-red/filebridge/pkg/mime"
)

// ErrUnconfiguredRoot is returned when a file lies outside every directory
// the app's file provider exposes.
var ErrUnconfiguredRoot = errors.New("failed to find configured root that contains the file")

// AuthoritySuffix is appended to the package id to form the provider authority.
const AuthoritySuffix = ".file_provider"

// ContentProvider issues read-scoped content handles for files.
type ContentProvider interface {
	// URIForFile returns a content URI for path under authority. It returns
	// an error wrapping ErrUnconfiguredRoot when path is not exposed.
	URIForFile(ctx context.Context, authority, path string) (string, error)
}

// ContentResolver looks up the MIME type the platform knows for a URI.
type ContentResolver interface {
	// TypeOf returns "" when the platform cannot tell.
	TypeOf(ctx context.Context, uri string) (string, error)
}

// Grant is the handle and type issued for a single open request.
// Grants are never reused; each request issues its own.
type Grant struct {
	// Handle is the URI passed to the launcher.
	Handle string
	// MimeType is never empty.
	MimeType string
	// ReadGranted means the launch must carry the read-URI permission flag.
	ReadGranted bool
	// UnknownSourceHint marks package archives so the installer flow treats
	// the caller as a known source.
	UnknownSourceHint bool
}

// Apply writes the grant into a launch request. The read flag replaces any
// flags already present.
func (g Grant) Apply(in *intent.Intent) {
	in.SetDataAndType(g.Handle, g.MimeType)
	if g.ReadGranted {
		in.SetFlags(intent.FlagGrantReadURIPermission)
	}
	if g.UnknownSourceHint {
		in.PutExtra(intent.ExtraNotUnknownSource, true)
	}
}

// Authority returns the file provider authority for a package id.
func Authority(packageID string) string {
	return packageID + AuthoritySuffix
}

// FileURI returns a direct file:// reference to path. A relative path is
// resolved against the working directory.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// Issuer produces grants for files.
type Issuer struct {
	// PackageID is the application package namespace, e.g. "red.lilu.app".
	PackageID string
	Provider  ContentProvider
	Resolver  ContentResolver
	Logger    *zap.Logger
}

// Issue builds a grant for path using the given handle strategy.
func (i *Issuer) Issue(ctx context.Context, strategy capability.HandleStrategy, path string) (Grant, error) {
	logger := log.OrNop(i.Logger)

	var g Grant
	switch strategy {
	case capability.HandleContentURI:
		if i.Provider == nil {
			return Grant{}, fmt.Errorf("grant: no content provider configured")
		}
		uri, err := i.Provider.URIForFile(ctx, Authority(i.PackageID), path)
		if err != nil {
			return Grant{}, err
		}
		g.Handle = uri
		g.ReadGranted = true
	default:
		g.Handle = FileURI(path)
	}

	mimeType, err := i.resolveType(ctx, g.Handle, path, logger)
	if err != nil {
		return Grant{}, err
	}
	g.MimeType = mimeType

	if g.MimeType == mime.PackageArchive {
		logger.Debug("package archive, setting unknown source hint")
		g.UnknownSourceHint = true
	}
	return g, nil
}

func (i *Issuer) resolveType(ctx context.Context, uri, path string, logger *zap.Logger) (string, error) {
	if i.Resolver != nil {
		mimeType, err := i.Resolver.TypeOf(ctx, uri)
		if err != nil {
			return "", err
		}
		if mimeType != "" {
			logger.Debug("content type from resolver", zap.String("mime", mimeType))
			return mimeType, nil
		}
	}

	ext := mime.Extension(path)
	mimeType, rule := mime.Match(ext)
	logger.Debug("content type not resolvable, guessed from extension",
		zap.String("extension", ext),
		zap.String("rule", rule),
		zap.String("mime", mimeType))
	return mimeType, nil
}
