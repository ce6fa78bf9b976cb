package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/lilu-red/filebridge/pkg/grant"
)

// CodeUnconfiguredRoot is the native error code for a file outside the
// provider's configured paths.
const CodeUnconfiguredRoot = "unconfigured_root"

// Content provides access to the app's file provider and the platform
// content resolver.
var Content = &ContentService{
	channel: NewMethodChannel("filebridge/content"),
}

// ContentService issues content URIs and looks up their types.
type ContentService struct {
	channel *MethodChannel
}

// URIForFile asks the file provider registered under authority for a
// content URI to path.
func (s *ContentService) URIForFile(ctx context.Context, authority, path string) (string, error) {
	if authority == "" || path == "" {
		return "", fmt.Errorf("content: %w: authority and path are required", ErrInvalidArguments)
	}
	result, err := s.channel.InvokeContext(ctx, "getUriForFile", map[string]any{
		"authority": authority,
		"path":      path,
	})
	if err != nil {
		var chErr *ChannelError
		if errors.As(err, &chErr) && chErr.Code == CodeUnconfiguredRoot {
			return "", fmt.Errorf("%w: %s", grant.ErrUnconfiguredRoot, chErr.Message)
		}
		return "", err
	}
	uri, err := responseField("content.getUriForFile", result, "uri")
	if err != nil {
		return "", err
	}
	if s := parseString(uri); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("content.getUriForFile: %w: empty uri", ErrUnexpectedResponse)
}

// TypeOf returns the MIME type the content resolver reports for uri, or ""
// when it has none.
func (s *ContentService) TypeOf(ctx context.Context, uri string) (string, error) {
	result, err := s.channel.InvokeContext(ctx, "getType", map[string]any{
		"uri": uri,
	})
	if err != nil {
		return "", err
	}
	mimeType, err := responseField("content.getType", result, "type")
	if err != nil {
		return "", err
	}
	return parseString(mimeType), nil
}
