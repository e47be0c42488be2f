package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// backupBinary writes a timestamped copy of the tool binary at
// toolsDir/name and returns its path, or "" if no binary currently
// exists there (a first deployment has nothing to back up).
func backupBinary(toolsDir, name string) (string, error) {
	path := filepath.Join(toolsDir, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("monitor: stat tool binary: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("monitor: read tool binary: %w", err)
	}

	backupPath := fmt.Sprintf("%s.bak-%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, data, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("monitor: write tool binary backup: %w", err)
	}
	return backupPath, nil
}

// restoreBinary copies backupPath back over toolsDir/name.
func restoreBinary(backupPath, toolsDir, name string) error {
	if backupPath == "" {
		return fmt.Errorf("monitor: no backup available to restore")
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("monitor: read backup: %w", err)
	}
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		return fmt.Errorf("monitor: create tools dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(toolsDir, name), data, 0o755); err != nil {
		return fmt.Errorf("monitor: write restored binary: %w", err)
	}
	return nil
}
