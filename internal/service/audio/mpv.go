package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dexterlb/mpvipc"

	"github.com/oshokin/morning-glow/internal/logger"
)

const (
	// defaultStartupTimeout bounds how long Play waits for mpv to open its IPC socket.
	defaultStartupTimeout = 3 * time.Second
	// readyPollInterval is the delay between IPC connection attempts during startup.
	readyPollInterval = 25 * time.Millisecond
	// ipcTimeout bounds a single IPC exchange with mpv.
	ipcTimeout = 2 * time.Second
)

var (
	// ErrPlayerExited is returned when mpv quits before playback is up.
	ErrPlayerExited = errors.New("player exited")
	// errStartupTimeout is returned when mpv never opens its IPC socket.
	errStartupTimeout = errors.New("player did not become ready")
	// errIPCTimeout is returned when mpv does not answer an IPC command.
	errIPCTimeout = errors.New("player did not answer")
)

// Process lifecycle states, see mpvProcess.state.
const (
	processStarting int32 = iota
	processRunning
	processDone
)

// ExitHandler receives playback that ended on its own after a successful start.
type ExitHandler func(ctx context.Context, err error)

// MPV plays sounds by spawning an mpv process that loops the source.
// Volume changes go through mpv's JSON IPC socket so playback is not restarted.
type MPV struct {
	// ctx carries the logger.
	ctx context.Context
	// binary is the mpv executable.
	binary string
	// socketDir receives the IPC sockets.
	socketDir string
	// startupTimeout bounds the wait for the IPC socket.
	startupTimeout time.Duration

	// onExit is notified about unexpected exits after startup.
	onExit atomic.Pointer[ExitHandler]

	mu       sync.Mutex
	proc     *mpvProcess
	sequence int
}

// mpvProcess is one spawned mpv instance.
type mpvProcess struct {
	cmd    *exec.Cmd
	socket string
	conn   *mpvipc.Connection

	// exited closes once the process has been reaped; err is valid afterwards.
	exited chan struct{}
	err    error

	// state moves from starting to running on a successful start, and to done
	// when the process is reaped. Whoever moves it to done owns the outcome.
	state atomic.Int32
	// stopping is set before the process is killed on purpose.
	stopping atomic.Bool
}

// NewMPV creates an mpv-backed player.
func NewMPV(ctx context.Context, binary, socketDir string) *MPV {
	if socketDir == "" {
		socketDir = os.TempDir()
	}

	return &MPV{
		ctx:            logger.WithName(ctx, "mpv"),
		binary:         binary,
		socketDir:      socketDir,
		startupTimeout: defaultStartupTimeout,
	}
}

// OnUnexpectedExit registers fn for playback that ends without a Stop.
func (m *MPV) OnUnexpectedExit(fn ExitHandler) {
	m.onExit.Store(&fn)
}

// Play implements Player. It returns once mpv accepts IPC connections,
// or with an error when mpv exits or stays unreachable during startup.
func (m *MPV) Play(ctx context.Context, src Source, volume float64) error {
	if ctx.Err() != nil {
		return ErrInterrupted
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.stopLocked(); err != nil {
		return err
	}

	m.sequence++
	socket := filepath.Join(m.socketDir, fmt.Sprintf("glow-mpv-%d-%d.sock", os.Getpid(), m.sequence))

	//nolint:gosec // The binary comes from the operator's settings.
	cmd := exec.Command(m.binary,
		"--no-video",
		"--loop=inf",
		"--really-quiet",
		"--volume="+strconv.Itoa(volumePercent(volume)),
		"--input-ipc-server="+socket,
		src.Location,
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.binary, err)
	}

	p := &mpvProcess{
		cmd:    cmd,
		socket: socket,
		exited: make(chan struct{}),
	}

	go m.reap(p)

	if err := m.awaitReady(ctx, p); err != nil {
		_ = m.terminate(p)

		return err
	}

	if !p.state.CompareAndSwap(processStarting, processRunning) {
		_ = m.terminate(p)

		return fmt.Errorf("%w: %w", ErrPlayerExited, p.exitError())
	}

	m.proc = p

	logger.DebugKV(m.ctx, "Player process started", "pid", cmd.Process.Pid, "source", src.Location)

	return nil
}

// Stop implements Player.
func (m *MPV) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopLocked()
}

// SetVolume implements Player. It is a no-op when nothing is playing.
func (m *MPV) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc == nil {
		return nil
	}

	if err := m.proc.set("volume", volumePercent(volume)); err != nil {
		return fmt.Errorf("send volume: %w", err)
	}

	return nil
}

// awaitReady polls the IPC socket until it accepts a connection.
func (m *MPV) awaitReady(ctx context.Context, p *mpvProcess) error {
	deadline := time.NewTimer(m.startupTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.exited:
			return fmt.Errorf("%w: %w", ErrPlayerExited, p.exitError())
		default:
		}

		conn := mpvipc.NewConnection(p.socket)
		if err := conn.Open(); err == nil {
			p.conn = conn

			return nil
		}

		select {
		case <-ctx.Done():
			return ErrInterrupted
		case <-p.exited:
			return fmt.Errorf("%w: %w", ErrPlayerExited, p.exitError())
		case <-deadline.C:
			return fmt.Errorf("%w within %s", errStartupTimeout, m.startupTimeout)
		case <-ticker.C:
		}
	}
}

// reap waits for the process and reports an exit nobody asked for.
func (m *MPV) reap(p *mpvProcess) {
	err := p.cmd.Wait()
	p.err = err
	close(p.exited)

	for !p.state.CompareAndSwap(processRunning, processDone) {
		if p.state.CompareAndSwap(processStarting, processDone) {
			// Play sees the exit and returns it.
			return
		}
	}

	if p.stopping.Load() {
		return
	}

	if err == nil {
		err = ErrPlayerExited
	}

	logger.WarnKV(m.ctx, "Player process exited during playback", "error", err)

	if fn := m.onExit.Load(); fn != nil {
		(*fn)(m.ctx, err)
	}
}

// stopLocked kills the running process and waits for it. m.mu must be held.
func (m *MPV) stopLocked() error {
	if m.proc == nil {
		return nil
	}

	p := m.proc
	m.proc = nil

	return m.terminate(p)
}

// terminate kills p, waits until it is reaped and removes its socket.
func (m *MPV) terminate(p *mpvProcess) error {
	p.stopping.Store(true)

	if p.conn != nil {
		_ = p.conn.Close()
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player: %w", err)
	}

	<-p.exited

	if err := os.Remove(p.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(m.ctx, "Failed to remove player socket", "path", p.socket, "error", err)
	}

	return nil
}

// set changes an mpv property over IPC. The IPC client waits for mpv's reply
// without a deadline, so the wait is bounded here.
func (p *mpvProcess) set(property string, value any) error {
	result := make(chan error, 1)

	go func() {
		result <- p.conn.Set(property, value)
	}()

	select {
	case err := <-result:
		return err
	case <-p.exited:
		return fmt.Errorf("%w: %w", ErrPlayerExited, p.exitError())
	case <-time.After(ipcTimeout):
		return errIPCTimeout
	}
}

// exitError describes how the process ended. Only valid once exited is closed.
func (p *mpvProcess) exitError() error {
	if p.err != nil {
		return p.err
	}

	return errors.New("exit status 0")
}

func volumePercent(volume float64) int {
	return int(math.Round(clampVolume(volume) * 100))
}
