//go:build !windows

package alarms

import (
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/oshokin/morning-glow/internal/config"
)

// writeAtomically writes data through a pending file that is fsynced and renamed over path,
// so a crash never leaves a truncated alarm list behind.
func writeAtomically(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(config.DefaultFilePermissions))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}

	defer func() {
		_ = pendingFile.Cleanup()
	}()

	if _, err = pendingFile.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}

	if err = pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	return nil
}
