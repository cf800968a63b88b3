package audio

import (
	"context"
	"errors"

	"github.com/oshokin/morning-glow/internal/logger"
)

// ErrInterrupted is returned by Player.Play when the start was superseded by a stop.
var ErrInterrupted = errors.New("playback interrupted")

// Source is a resolved, playable sound.
type Source struct {
	// Location is a URL or a local file path.
	Location string
	// Name is a human-readable title for logs.
	Name string
}

// Player is the shared audio output.
type Player interface {
	// Play starts looping src at volume in [0, 1], replacing whatever was playing.
	// It returns once playback has started.
	Play(ctx context.Context, src Source, volume float64) error
	// Stop halts playback. Stopping an idle player is not an error.
	Stop() error
	// SetVolume changes the volume of the current playback in place.
	SetVolume(volume float64) error
}

// Silent is a Player for headless setups that only logs.
type Silent struct {
	// ctx carries the logger.
	ctx context.Context
}

// NewSilent creates a logging-only player.
func NewSilent(ctx context.Context) *Silent {
	return &Silent{ctx: logger.WithName(ctx, "silent-player")}
}

// Play implements Player.
func (s *Silent) Play(ctx context.Context, src Source, volume float64) error {
	if err := ctx.Err(); err != nil {
		return ErrInterrupted
	}

	logger.InfoKV(s.ctx, "Would play alarm sound", "source", src.Name, "location", src.Location, "volume", volume)

	return nil
}

// Stop implements Player.
func (s *Silent) Stop() error {
	logger.Debug(s.ctx, "Would stop alarm sound")

	return nil
}

// SetVolume implements Player.
func (s *Silent) SetVolume(volume float64) error {
	logger.DebugKV(s.ctx, "Would change volume", "volume", volume)

	return nil
}
