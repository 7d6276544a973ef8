package recorder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

const chunkSize = 4096

// ExecDevice captures microphone audio by running an external command that
// streams encoded audio to stdout (ffmpeg or arecord in kiosk deployments).
// Pause and resume are signal-driven so no audio is produced while paused.
type ExecDevice struct {
	Command string
	Args    []string
}

// Acquire starts the capture process and delivers stdout chunks to onChunk
// from a reader goroutine until the stream is closed.
func (d *ExecDevice) Acquire(ctx context.Context, onChunk func([]byte)) (CaptureStream, error) {
	if d.Command == "" {
		return nil, fmt.Errorf("%w: no capture command configured", ErrDeviceUnavailable)
	}
	if _, err := exec.LookPath(d.Command); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrDeviceUnavailable, d.Command)
	}

	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	go func() {
		buf := make([]byte, chunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				onChunk(buf[:n])
			}
			if err != nil {
				// EOF or pipe closed by Close; the stream owns process state.
				return
			}
		}
	}()

	return &execStream{cmd: cmd}, nil
}

type execStream struct {
	cmd       *exec.Cmd
	closeOnce sync.Once
}

func (s *execStream) Pause() error {
	return s.cmd.Process.Signal(syscall.SIGSTOP)
}

func (s *execStream) Resume() error {
	return s.cmd.Process.Signal(syscall.SIGCONT)
}

// Close terminates the capture process and reaps it. A paused process is
// resumed first so the termination signal is delivered.
func (s *execStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.cmd.Process.Signal(syscall.SIGCONT)
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
		err = s.cmd.Wait()
	})
	return err
}
