// Package config loads the optional filebridge.yaml and resolves defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "filebridge.yaml"

// Defaults.
const (
	DefaultChannel      = "app.lilu.red/flutter"
	DefaultCodec        = "json"
	DefaultChooserTitle = "选择如何打开"
	DefaultLogLevel     = "info"
)

var validate = validator.New()

// Config represents the optional filebridge.yaml configuration.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Bridge BridgeConfig `yaml:"bridge"`
	Host   HostConfig   `yaml:"host"`
	Log    LogConfig    `yaml:"log"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// BridgeConfig contains channel settings.
type BridgeConfig struct {
	Channel string `yaml:"channel,omitempty"`
	Codec   string `yaml:"codec,omitempty"`
	// ChooserTitle is the title of the app chooser shown by open. Set it to
	// an empty string to launch the default handler instead.
	ChooserTitle *string `yaml:"chooser_title,omitempty"`
}

// HostConfig contains settings for the desktop capability set.
type HostConfig struct {
	SDK           int      `yaml:"sdk,omitempty"`
	ProviderRoots []string `yaml:"provider_roots,omitempty"`
	FilesDir      string   `yaml:"files_dir,omitempty"`
	DownloadsDir  string   `yaml:"downloads_dir,omitempty"`
	Opener        string   `yaml:"opener,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Resolved contains resolved configuration values. Paths are absolute.
type Resolved struct {
	Root       string `validate:"required"`
	ModulePath string
	AppName    string `validate:"required"`
	AppID      string `validate:"required"`

	Channel      string `validate:"required"`
	Codec        string `validate:"oneof=json msgpack"`
	ChooserTitle string

	SDK           int      `validate:"gte=0"`
	ProviderRoots []string `validate:"dive,required"`
	FilesDir      string
	DownloadsDir  string
	Opener        string

	LogLevel string `validate:"oneof=debug info warn warning error"`
	LogFile  string
}

// LoadOptional reads filebridge.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// Resolve loads filebridge.yaml (if present) and resolves defaults. A go.mod
// in dir, when present, supplies the default app name and id.
func Resolve(dir string) (*Resolved, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	modulePath, err := modulePath(root)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(root)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, root)
	}

	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modulePath, appName)
	}

	chooserTitle := DefaultChooserTitle
	if cfg.Bridge.ChooserTitle != nil {
		chooserTitle = strings.TrimSpace(*cfg.Bridge.ChooserTitle)
	}

	r := &Resolved{
		Root:          root,
		ModulePath:    modulePath,
		AppName:       appName,
		AppID:         appID,
		Channel:       orDefault(cfg.Bridge.Channel, DefaultChannel),
		Codec:         orDefault(cfg.Bridge.Codec, DefaultCodec),
		ChooserTitle:  chooserTitle,
		SDK:           cfg.Host.SDK,
		ProviderRoots: make([]string, 0, len(cfg.Host.ProviderRoots)),
		FilesDir:      absUnder(root, cfg.Host.FilesDir),
		DownloadsDir:  absUnder(root, cfg.Host.DownloadsDir),
		Opener:        strings.TrimSpace(cfg.Host.Opener),
		LogLevel:      orDefault(cfg.Log.Level, DefaultLogLevel),
		LogFile:       absUnder(root, cfg.Log.File),
	}
	for _, p := range cfg.Host.ProviderRoots {
		r.ProviderRoots = append(r.ProviderRoots, absUnder(root, p))
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the resolved values. Call it again after applying overrides.
func (r *Resolved) Validate() error {
	if err := validateAppID(r.AppID); err != nil {
		return err
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from the current directory to find filebridge.yaml
// or go.mod. It returns the current directory when neither exists.
func FindProjectRoot() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := start
	for {
		for _, marker := range []string{FileName, "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func absUnder(root, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// modulePath returns the module path from dir/go.mod, or "" if there is none.
func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "filebridge"
	}
	return base
}

func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(appName))
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	var pathParts []string
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		pathParts = append(pathParts, p)
	}

	segments := append(host, pathParts...)
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment)
	}

	return strings.Join(segments, ".")
}

// sanitizeSegment lowercases segment and keeps letters, digits and '_'.
// Hyphens become underscores, which package names accept.
func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)

	var out []rune
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_':
			if len(out) > 0 {
				out = append(out, '_')
			}
		}
	}

	if len(out) == 0 {
		out = []rune("app")
	}

	if out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}

	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	segments := strings.Split(appID, ".")
	for _, segment := range segments {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		if segment[0] == '_' {
			return fmt.Errorf("app.id segments cannot start with '_' (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
