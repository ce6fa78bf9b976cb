package host

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilu-red/filebridge/pkg/grant"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestContentResolverTypeOf(t *testing.T) {
	root := t.TempDir()
	provider := &FileProvider{Roots: []string{root}}
	r := &ContentResolver{Provider: provider}

	png := writeFile(t, root, "picture.bin", pngHeader)
	pdf := writeFile(t, root, "doc", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))
	text := writeFile(t, root, "notes.txt", []byte("hello world\n"))
	blob := writeFile(t, root, "blob", []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff, 0x00, 0x9c})

	uri, err := provider.URIForFile(context.Background(), grant.Authority("app"), png)
	require.NoError(t, err)

	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "content uri sniffed", uri: uri, want: "image/png"},
		{name: "file uri sniffed", uri: grant.FileURI(pdf), want: "application/pdf"},
		{name: "parameters dropped", uri: grant.FileURI(text), want: "text/plain"},
		{name: "unrecognized", uri: grant.FileURI(blob), want: ""},
		{name: "missing file", uri: grant.FileURI(filepath.Join(root, "gone.png")), want: ""},
		{name: "foreign scheme", uri: "https://example.com/a.png", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.TypeOf(context.Background(), tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
