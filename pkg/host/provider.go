// Package host implements the bridge's capabilities on a desktop machine:
// a file provider over configured directories, content sniffing, the system
// opener, a filesystem permission probe and per-user directories.
package host

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lilu-red/filebridge/pkg/grant"
)

// FileProvider exposes files below Roots as content URIs of the form
// content://<authority>/<root-index>/<relative-path>.
type FileProvider struct {
	Roots []string
}

// URIForFile returns the content URI for path. It fails with
// grant.ErrUnconfiguredRoot when no root contains path.
func (p *FileProvider) URIForFile(_ context.Context, authority, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	for i, root := range p.Roots {
		rel, ok := within(root, abs)
		if !ok {
			continue
		}
		u := url.URL{
			Scheme: "content",
			Host:   authority,
			Path:   "/" + strconv.Itoa(i) + "/" + filepath.ToSlash(rel),
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("%w: %s", grant.ErrUnconfiguredRoot, abs)
}

// PathFor maps a content URI issued by URIForFile back to a file path.
func (p *FileProvider) PathFor(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid content uri: %w", err)
	}
	if u.Scheme != "content" {
		return "", fmt.Errorf("not a content uri: %s", uri)
	}
	idx, rel, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(p.Roots) {
		return "", fmt.Errorf("%w: %s", grant.ErrUnconfiguredRoot, uri)
	}
	root, err := filepath.Abs(p.Roots[i])
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	if _, ok := within(root, path); !ok {
		return "", fmt.Errorf("%w: %s", grant.ErrUnconfiguredRoot, uri)
	}
	return path, nil
}

// within returns path relative to root if path lies strictly below root.
func within(root, path string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// localPath resolves a file or content URI to a path on disk.
func localPath(provider *FileProvider, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "file":
		return filepath.FromSlash(u.Path), nil
	case "content":
		if provider == nil {
			return "", fmt.Errorf("no file provider for %s", uri)
		}
		return provider.PathFor(uri)
	default:
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
}
