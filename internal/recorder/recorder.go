package recorder

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the recorder lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
)

// Artifact is the finalized audio blob produced by one recording session.
type Artifact struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// Reader returns a fresh reader over the artifact data for upload.
func (a *Artifact) Reader() *bytes.Reader {
	return bytes.NewReader(a.Data)
}

// Snapshot is a point-in-time view of the recorder for status endpoints.
// SessionID identifies one recording session across start/stop and its tick
// broadcasts; empty while idle.
type Snapshot struct {
	SessionID   string `json:"sessionId,omitempty"`
	Status      Status `json:"status"`
	Elapsed     int    `json:"elapsed"`
	HasArtifact bool   `json:"hasArtifact"`
	Error       string `json:"error,omitempty"`
}

// Options configures a Recorder.
type Options struct {
	// MIMEType recorded on the artifact. Defaults to audio/webm.
	MIMEType string
	// TickInterval drives the OnTick callback. Defaults to one second.
	TickInterval time.Duration
	// OnTick is invoked with whole elapsed seconds while recording. The
	// consumer enforces any duration cap from here by calling Stop.
	OnTick func(elapsed int)
}

// Recorder turns a CaptureDevice into the idle → recording ⇄ paused →
// stopped state machine. One recorder owns at most one live capture stream;
// every acquired stream is released on stop, reset or start failure.
type Recorder struct {
	device CaptureDevice
	opts   Options

	mu          sync.Mutex
	sessionID   string
	status      Status
	stream      CaptureStream
	chunks      [][]byte
	artifact    *Artifact
	accumulated time.Duration
	segStart    time.Time
	tickStop    chan struct{}
	lastErr     error
}

// New creates an idle recorder over the given device.
func New(device CaptureDevice, opts Options) *Recorder {
	if opts.MIMEType == "" {
		opts.MIMEType = "audio/webm"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Recorder{
		device: device,
		opts:   opts,
		status: StatusIdle,
	}
}

// Start acquires the microphone and begins capturing. Valid in idle only;
// a stopped recorder must be Reset first. Permission and device failures are
// recorded as the session error and returned; the caller may retry.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusIdle {
		r.mu.Unlock()
		return ErrInvalidState
	}
	r.mu.Unlock()

	// Acquire outside the lock: the device may block on hardware or a
	// permission prompt, and onChunk needs the lock.
	stream, err := r.device.Acquire(ctx, r.appendChunk)
	if err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if r.status != StatusIdle {
		// Lost a race with Reset or a concurrent Start; release immediately
		// so no second live stream exists.
		r.mu.Unlock()
		stream.Close()
		return ErrInvalidState
	}
	r.stream = stream
	r.sessionID = uuid.NewString()
	r.status = StatusRecording
	r.chunks = nil
	r.artifact = nil
	r.accumulated = 0
	r.segStart = time.Now()
	r.lastErr = nil
	r.tickStop = make(chan struct{})
	stop := r.tickStop
	r.mu.Unlock()

	go r.runTicker(stop)
	return nil
}

// Pause suspends capture and the elapsed clock. Valid only while recording.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording {
		return ErrInvalidState
	}
	if err := r.stream.Pause(); err != nil {
		return err
	}
	r.accumulated += time.Since(r.segStart)
	r.status = StatusPaused
	return nil
}

// Resume continues capture after a pause.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPaused {
		return ErrInvalidState
	}
	if err := r.stream.Resume(); err != nil {
		return err
	}
	r.segStart = time.Now()
	r.status = StatusRecording
	return nil
}

// Stop finalizes buffered chunks into a single artifact and releases the
// hardware stream. Valid while recording or paused. A repeated Stop on an
// already stopped recorder returns the existing artifact and no error, so a
// consumer-enforced duration cap racing a manual stop is harmless.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusStopped:
		return r.artifact, nil
	case StatusRecording:
		r.accumulated += time.Since(r.segStart)
	case StatusPaused:
		// elapsed already accumulated at pause time
	default:
		return nil, ErrNoRecording
	}

	r.releaseLocked()

	var size int
	for _, c := range r.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	r.artifact = &Artifact{
		Data:     data,
		MIMEType: r.opts.MIMEType,
		Duration: r.accumulated,
	}
	r.chunks = nil
	r.status = StatusStopped
	return r.artifact, nil
}

// Reset force-stops any active capture, discards the artifact and returns to
// idle. Valid from any state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRecording {
		r.accumulated += time.Since(r.segStart)
	}
	r.releaseLocked()
	r.chunks = nil
	r.artifact = nil
	r.accumulated = 0
	r.lastErr = nil
	r.sessionID = ""
	r.status = StatusIdle
}

// Close is the unmount path: equivalent to Reset.
func (r *Recorder) Close() {
	r.Reset()
}

// Elapsed returns whole seconds of capture time. The clock is frozen while
// paused and monotonic across pause/resume cycles.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.elapsedLocked().Seconds())
}

// Status returns the current lifecycle state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Artifact returns the finalized recording, nil unless stopped.
func (r *Recorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact
}

// Snapshot returns the state exposed by the status endpoint.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		SessionID:   r.sessionID,
		Status:      r.status,
		Elapsed:     int(r.elapsedLocked().Seconds()),
		HasArtifact: r.artifact != nil,
	}
	if r.lastErr != nil {
		s.Error = r.lastErr.Error()
	}
	return s
}

func (r *Recorder) elapsedLocked() time.Duration {
	if r.status == StatusRecording {
		return r.accumulated + time.Since(r.segStart)
	}
	return r.accumulated
}

// releaseLocked closes the stream and stops the ticker. Safe to call twice:
// the stream handle is cleared after the single Close.
func (r *Recorder) releaseLocked() {
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

func (r *Recorder) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Late chunks after stop/reset are dropped; the artifact is sealed.
	if r.status != StatusRecording && r.status != StatusPaused {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
}

func (r *Recorder) runTicker(stop chan struct{}) {
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			recording := r.status == StatusRecording
			elapsed := int(r.elapsedLocked().Seconds())
			cb := r.opts.OnTick
			r.mu.Unlock()
			if recording && cb != nil {
				cb(elapsed)
			}
		}
	}
}
