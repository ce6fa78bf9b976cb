package platform

import (
	"context"
	"fmt"
)

// Paths provides the app's storage locations.
var Paths = &PathService{
	channel: NewMethodChannel("filebridge/paths"),
}

// PathService resolves storage directories on the native side.
type PathService struct {
	channel *MethodChannel
}

// FilesDir returns the absolute path of app-private storage.
func (s *PathService) FilesDir(ctx context.Context) (string, error) {
	return s.path(ctx, "filesDir")
}

// PublicDownloadDir returns the absolute path of the shared downloads directory.
func (s *PathService) PublicDownloadDir(ctx context.Context) (string, error) {
	return s.path(ctx, "publicDownloadDir")
}

func (s *PathService) path(ctx context.Context, method string) (string, error) {
	result, err := s.channel.InvokeContext(ctx, method, nil)
	if err != nil {
		return "", err
	}
	v, err := responseField("paths."+method, result, "path")
	if err != nil {
		return "", err
	}
	path := parseString(v)
	if path == "" {
		return "", fmt.Errorf("paths.%s: %w: empty path", method, ErrUnexpectedResponse)
	}
	return path, nil
}
