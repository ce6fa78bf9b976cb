package host

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/log"
)

// octetStream is what the sniffer reports when nothing matched.
const octetStream = "application/octet-stream"

// ContentResolver reports the type of a file by sniffing its content.
type ContentResolver struct {
	Provider *FileProvider
	Logger   *zap.Logger
}

// TypeOf returns the detected MIME type of the file behind uri, without
// parameters. Unreadable or unrecognized content yields "".
func (r *ContentResolver) TypeOf(_ context.Context, uri string) (string, error) {
	logger := log.OrNop(r.Logger)
	path, err := localPath(r.Provider, uri)
	if err != nil {
		logger.Debug("content type unavailable", zap.String("uri", uri), zap.Error(err))
		return "", nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		logger.Debug("content type unavailable", zap.String("path", path), zap.Error(err))
		return "", nil
	}
	if m.Is(octetStream) {
		return "", nil
	}
	mediaType, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(mediaType), nil
}
