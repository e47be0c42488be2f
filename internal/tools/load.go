package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/pkg/domain"
)

// manifest is the on-disk shape of a directory-loaded tool: a
// ToolDefinition plus the sandboxed command that implements it.
type manifest struct {
	domain.ToolDefinition `yaml:",inline"`
	Command               string   `yaml:"command"`
	Args                  []string `yaml:"args"`
}

// LoadFromDirectory scans path for "*.tool.yaml" manifests and
// registers each as a SandboxTool. Files whose base name starts with
// "_" (private) or equals "base.tool.yaml" are skipped, matching the
// teacher's convention of excluding abstract/base units from discovery.
// A manifest that fails to parse is logged and skipped rather than
// aborting the whole load. Returns the count of tools registered.
func (r *Registry) LoadFromDirectory(ctx context.Context, path string, logger *observability.Logger) (int, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("tools: read directory %q: %w", path, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".tool.yaml") {
			continue
		}
		if strings.HasPrefix(name, "_") || name == "base.tool.yaml" {
			continue
		}

		full := filepath.Join(path, name)
		data, err := os.ReadFile(full)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "skipping unreadable tool manifest", "path", full, "error", err)
			}
			continue
		}

		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			if logger != nil {
				logger.Warn(ctx, "skipping malformed tool manifest", "path", full, "error", err)
			}
			continue
		}
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Command) == "" {
			if logger != nil {
				logger.Warn(ctx, "skipping incomplete tool manifest", "path", full)
			}
			continue
		}

		r.Register(NewSandboxTool(m.ToolDefinition, m.Command, m.Args, 0))
		loaded++
	}
	return loaded, nil
}
