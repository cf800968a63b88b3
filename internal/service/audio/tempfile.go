package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/oshokin/morning-glow/internal/logger"
)

// tempFile is a materialized uploaded sound. It is removed exactly once.
type tempFile struct {
	path string
	once sync.Once
}

func writeTempFile(dir string, data []byte) (*tempFile, error) {
	f, err := os.CreateTemp(dir, "glow-sound-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary sound file: %w", err)
	}

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return nil, fmt.Errorf("write temporary sound file: %w", err)
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(f.Name())

		return nil, fmt.Errorf("close temporary sound file: %w", err)
	}

	return &tempFile{path: f.Name()}, nil
}

// release removes the file. Nil handles are ignored.
func (t *tempFile) release(ctx context.Context) {
	if t == nil {
		return
	}

	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Failed to remove temporary sound file", "path", t.path, "error", err)
		}
	})
}
