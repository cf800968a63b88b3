//go:build windows

package alarms

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomically writes data to a temp file in the same directory and renames it over path.
// Windows offers no fsync-then-rename guarantee, so this is best effort.
func writeAtomically(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".glow-alarms-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
