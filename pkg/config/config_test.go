package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, goMod, yamlData string) string {
	t.Helper()
	dir := t.TempDir()
	if goMod != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0o644))
	}
	if yamlData != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yamlData), 0o644))
	}
	return dir
}

func TestResolveDefaultsFromGoMod(t *testing.T) {
	dir := writeProject(t, "module github.com/lilu-red/file-bridge\n\ngo 1.24\n", "")

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, r.Root)
	assert.Equal(t, "github.com/lilu-red/file-bridge", r.ModulePath)
	assert.Equal(t, "file-bridge", r.AppName)
	assert.Equal(t, "com.github.lilu_red.file_bridge", r.AppID)
	assert.Equal(t, DefaultChannel, r.Channel)
	assert.Equal(t, DefaultCodec, r.Codec)
	assert.Equal(t, DefaultChooserTitle, r.ChooserTitle)
	assert.Equal(t, DefaultLogLevel, r.LogLevel)
	assert.Zero(t, r.SDK)
	assert.Empty(t, r.ProviderRoots)
}

func TestResolveWithoutGoMod(t *testing.T) {
	dir := writeProject(t, "", "")

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Empty(t, r.ModulePath)
	assert.Equal(t, filepath.Base(dir), r.AppName)
	assert.Contains(t, r.AppID, "com.example.")
	require.NoError(t, validateAppID(r.AppID))
}

func TestResolveFromYAML(t *testing.T) {
	dir := writeProject(t, "", `
app:
  name: Red
  id: red.lilu.app
bridge:
  channel: red/files
  codec: msgpack
  chooser_title: ""
host:
  sdk: 30
  provider_roots: [shared, /srv/media]
  files_dir: data/files
  downloads_dir: /home/u/Downloads
  opener: gio open
log:
  level: debug
  file: logs/bridge.log
`)

	r, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "Red", r.AppName)
	assert.Equal(t, "red.lilu.app", r.AppID)
	assert.Equal(t, "red/files", r.Channel)
	assert.Equal(t, "msgpack", r.Codec)
	assert.Empty(t, r.ChooserTitle, "explicit empty title disables the chooser")
	assert.Equal(t, 30, r.SDK)
	assert.Equal(t, []string{filepath.Join(dir, "shared"), "/srv/media"}, r.ProviderRoots)
	assert.Equal(t, filepath.Join(dir, "data", "files"), r.FilesDir)
	assert.Equal(t, "/home/u/Downloads", r.DownloadsDir)
	assert.Equal(t, "gio open", r.Opener)
	assert.Equal(t, "debug", r.LogLevel)
	assert.Equal(t, filepath.Join(dir, "logs", "bridge.log"), r.LogFile)
}

func TestResolveRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad codec", yaml: "bridge:\n  codec: xml\n"},
		{name: "bad log level", yaml: "log:\n  level: loud\n"},
		{name: "negative sdk", yaml: "host:\n  sdk: -1\n"},
		{name: "bad app id", yaml: "app:\n  id: Red.App\n"},
		{name: "malformed yaml", yaml: "app: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(writeProject(t, "", tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateAfterOverride(t *testing.T) {
	r, err := Resolve(writeProject(t, "", ""))
	require.NoError(t, err)

	r.Codec = "protobuf"
	assert.Error(t, r.Validate())
	r.Codec = "msgpack"
	assert.NoError(t, r.Validate())

	for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
		r.LogLevel = level
		assert.NoError(t, r.Validate(), level)
	}
	r.LogLevel = "loud"
	assert.Error(t, r.Validate())
}

func TestDefaultAppID(t *testing.T) {
	tests := []struct {
		modulePath string
		appName    string
		want       string
	}{
		{modulePath: "github.com/lilu-red/filebridge", appName: "filebridge", want: "com.github.lilu_red.filebridge"},
		{modulePath: "example.org/2fa", appName: "2fa", want: "org.example.a2fa"},
		{modulePath: "filebridge", appName: "File Bridge", want: "com.example.filebridge"},
		{modulePath: "", appName: "---", want: "com.example.app"},
	}
	for _, tt := range tests {
		t.Run(tt.modulePath, func(t *testing.T) {
			got := defaultAppID(tt.modulePath, tt.appName)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, validateAppID(got))
		})
	}
}

func TestValidateAppID(t *testing.T) {
	assert.NoError(t, validateAppID("red.lilu.app"))
	assert.Error(t, validateAppID("app"))
	assert.Error(t, validateAppID("red..app"))
	assert.Error(t, validateAppID("red.1app"))
	assert.Error(t, validateAppID("red._app"))
	assert.Error(t, validateAppID("red.App"))
}

func TestFindProjectRoot(t *testing.T) {
	dir := writeProject(t, "", "app:\n  id: red.lilu.app\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdirForTest(t, nested)

	root, err := FindProjectRoot()
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
