package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeBrowserExtensionService struct {
	LoadExtensionsFunc func(ctx context.Context, id string, body kernel.BrowserLoadExtensionsParams, opts ...option.RequestOption) error
}

func (f *FakeBrowserExtensionService) LoadExtensions(ctx context.Context, id string, body kernel.BrowserLoadExtensionsParams, opts ...option.RequestOption) error {
	if f.LoadExtensionsFunc != nil {
		return f.LoadExtensionsFunc(ctx, id, body, opts...)
	}
	return nil
}

func makeExtensionDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "review-toggles")
	for rel, content := range map[string]string{
		"manifest.json":           `{"manifest_version": 3, "name": "review toggles"}`,
		"content.js":              "console.log('toggle');",
		"node_modules/dep/dep.js": "excluded",
	} {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return dir
}

func TestExtensionLoad(t *testing.T) {
	dir := makeExtensionDir(t)

	var gotID, gotName string
	var entries []string
	fake := &FakeBrowserExtensionService{
		LoadExtensionsFunc: func(ctx context.Context, id string, body kernel.BrowserLoadExtensionsParams, opts ...option.RequestOption) error {
			gotID = id
			require.Len(t, body.Extensions, 1)
			gotName = body.Extensions[0].Name

			data, err := io.ReadAll(body.Extensions[0].ZipFile)
			require.NoError(t, err)
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			for _, f := range zr.File {
				if !f.FileInfo().IsDir() {
					entries = append(entries, f.Name)
				}
			}
			return nil
		},
	}

	err := ExtensionCmd{browsers: fake}.Load(context.Background(), ExtensionLoadInput{BrowserID: "sess-1", Dir: dir})
	require.NoError(t, err)

	sort.Strings(entries)
	assert.Equal(t, "sess-1", gotID)
	assert.Equal(t, "review-toggles", gotName)
	assert.Equal(t, []string{"content.js", "manifest.json"}, entries)
}

func TestExtensionLoadErrors(t *testing.T) {
	dir := makeExtensionDir(t)
	noManifest := t.TempDir()

	tests := []struct {
		name    string
		in      ExtensionLoadInput
		apiErr  error
		wantErr string
	}{
		{name: "no browser", in: ExtensionLoadInput{Dir: dir}, wantErr: "requires --browser"},
		{name: "missing dir", in: ExtensionLoadInput{BrowserID: "b", Dir: filepath.Join(dir, "nope")}, wantErr: "failed to read extension directory"},
		{name: "no manifest", in: ExtensionLoadInput{BrowserID: "b", Dir: noManifest}, wantErr: "has no manifest.json"},
		{name: "api error", in: ExtensionLoadInput{BrowserID: "b", Dir: dir}, apiErr: errors.New("browser not found"), wantErr: "browser not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &FakeBrowserExtensionService{
				LoadExtensionsFunc: func(ctx context.Context, id string, body kernel.BrowserLoadExtensionsParams, opts ...option.RequestOption) error {
					return tt.apiErr
				},
			}
			err := ExtensionCmd{browsers: fake}.Load(context.Background(), tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
