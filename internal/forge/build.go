package forge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/axonforge/engine/pkg/domain"
)

// codeHash returns a stable hash of a forged tool's source, stored on
// domain.ForgedTool for drift detection and cache keys.
func codeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// build writes code to scratchDir/<name>.go and compiles it with the Go
// toolchain into backupDir/<name>, returning the binary path. This is
// the Forge's own build step, invoked at runtime when the system
// synthesizes a tool — distinct from (and unrelated to) the development
// process that built this repository.
func build(ctx context.Context, scratchDir, backupDir, name, code string) (string, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create scratch dir: %w", domain.ErrExecution, err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %w", domain.ErrExecution, err)
	}

	srcPath := filepath.Join(scratchDir, name+".go")
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("%w: write forged tool source: %w", domain.ErrExecution, err)
	}

	binPath := filepath.Join(backupDir, name)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "build", "-o", binPath, srcPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: compile forged tool: %w (%s)", domain.ErrExecution, err, stderr.String())
	}
	return binPath, nil
}
