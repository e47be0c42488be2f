package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func TestLoadFromDirectoryRegistersValidManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "echo.tool.yaml", "name: echo\ndescription: echoes input\ncommand: /bin/echo\n")

	r := NewRegistry()
	count, err := r.LoadFromDirectory(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, ok := r.Get("echo")
	assert.True(t, ok)
}

func TestLoadFromDirectorySkipsPrivateAndBaseFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "_private.tool.yaml", "name: hidden\ndescription: x\ncommand: /bin/echo\n")
	writeManifest(t, dir, "base.tool.yaml", "name: base\ndescription: x\ncommand: /bin/echo\n")
	writeManifest(t, dir, "visible.tool.yaml", "name: visible\ndescription: x\ncommand: /bin/echo\n")

	r := NewRegistry()
	count, err := r.LoadFromDirectory(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, ok := r.Get("visible")
	assert.True(t, ok)
}

func TestLoadFromDirectorySkipsMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken.tool.yaml", "name: [this is not valid: yaml")
	writeManifest(t, dir, "ok.tool.yaml", "name: ok\ndescription: x\ncommand: /bin/echo\n")

	r := NewRegistry()
	count, err := r.LoadFromDirectory(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadFromDirectoryMissingDirReturnsZero(t *testing.T) {
	r := NewRegistry()
	count, err := r.LoadFromDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
