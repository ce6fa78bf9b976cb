package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { bridgeerrors.SetHandler(nil) })

	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"filebridge"}, args...))
	return out.String(), err
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := filepath.Join(dir, "files")
	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.MkdirAll(files, 0o755))
	require.NoError(t, os.MkdirAll(downloads, 0o755))

	cfg := "app:\n  name: demo\n  id: red.lilu.demo\n" +
		"host:\n  files_dir: " + files + "\n  downloads_dir: " + downloads + "\n" +
		"log:\n  file: " + filepath.Join(dir, "bridge.log") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "filebridge.yaml"), []byte(cfg), 0o644))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "filebridge "+Version)
}

func TestMimeCommand(t *testing.T) {
	out, err := run(t, "mime", "photo.JPG", "movie.mkv", "README")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "RULE")
	assert.Regexp(t, `photo\.JPG\s+jpg\s+image/\*\s+image`, lines[1])
	assert.Regexp(t, `movie\.mkv\s+mkv\s+video/\*\s+video`, lines[2])
	assert.Regexp(t, `README\s+\*/\*\s+wildcard`, lines[3])
}

func TestMimeCommandSniff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.bin")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%âãÏÓ\n"), 0o644))

	out, err := run(t, "mime", "--sniff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "CONTENT")
	assert.Contains(t, out, "application/pdf")
}

func TestMimeCommandRequiresName(t *testing.T) {
	_, err := run(t, "mime")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one name required")
}

func TestDirsCommand(t *testing.T) {
	dir := projectDir(t)

	out, err := run(t, "--dir", dir, "dirs")
	require.NoError(t, err)
	assert.Contains(t, out, "files:     "+filepath.Join(dir, "files"))
	assert.Contains(t, out, "downloads: "+filepath.Join(dir, "downloads"))
}

func TestPermissionCommand(t *testing.T) {
	dir := projectDir(t)

	out, err := run(t, "--dir", dir, "permission")
	require.NoError(t, err)
	assert.Contains(t, out, "state: granted")
}

func TestOpenCommandRequiresPath(t *testing.T) {
	_, err := run(t, "open")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path required")
}

func TestSetupRejectsInvalidOverrides(t *testing.T) {
	dir := projectDir(t)

	_, err := run(t, "--dir", dir, "--codec", "xml", "dirs")
	require.Error(t, err)

	_, err = run(t, "--dir", dir, "--log-level", "loud", "dirs")
	require.Error(t, err)
}
