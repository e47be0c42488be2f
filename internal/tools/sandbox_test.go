package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/pkg/domain"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSandboxToolSuccess(t *testing.T) {
	script := writeScript(t, `echo '{"result":{"ok":true}}'`)
	tool := NewSandboxTool(domain.ToolDefinition{Name: "x"}, script, nil, 0)

	result, err := tool.Execute(context.Background(), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.NotNil(t, result.Value)
}

func TestSandboxToolErrorResponse(t *testing.T) {
	script := writeScript(t, `echo '{"error":"boom"}'`)
	tool := NewSandboxTool(domain.ToolDefinition{Name: "x"}, script, nil, 0)

	result, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "boom", result.Error)
}

func TestSandboxToolNonJSONOutputIsError(t *testing.T) {
	script := writeScript(t, `echo 'not json'; exit 1`)
	tool := NewSandboxTool(domain.ToolDefinition{Name: "x"}, script, nil, 0)

	_, err := tool.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}
