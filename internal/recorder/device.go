package recorder

import (
	"context"
	"errors"
)

// Capture failure reasons. Devices wrap these so the state machine can
// surface permission denial and hardware absence distinctly.
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// State machine errors.
var (
	ErrInvalidState = errors.New("operation not valid in current recorder state")
	ErrNoRecording  = errors.New("no active recording")
)

// CaptureStream is one live hold on the hardware microphone source. Exactly
// one Close call must follow every successful Acquire, on every exit path.
type CaptureStream interface {
	Pause() error
	Resume() error
	Close() error
}

// CaptureDevice abstracts microphone access so the recording state machine
// is testable without real hardware. Acquire requests the source and begins
// delivering raw buffered chunks to onChunk until the stream is paused or
// closed. onChunk may be called from a device-owned goroutine.
type CaptureDevice interface {
	Acquire(ctx context.Context, onChunk func([]byte)) (CaptureStream, error)
}
