package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ieltsgo/agent/internal/model"
)

// Outcome is how a polling loop ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeTimedOut is the soft timeout: attempts exhausted without a
	// terminal status. The caller proceeds to the result view anyway.
	OutcomeTimedOut Outcome = "timed_out"
)

// StatusFetcher performs one status poll for a submission. result carries
// the full response payload so terminal success can expose the evaluation.
type StatusFetcher func(ctx context.Context) (status model.SubmissionStatus, result interface{}, err error)

// StepMapper converts a non-terminal server status into the UI step index.
// attempts is the count before the current poll, so writing's processing
// step can ramp with accumulated attempts.
type StepMapper func(status model.SubmissionStatus, attempts int) int

// Hooks receive job lifecycle events for UI broadcast. Either may be nil.
type Hooks struct {
	OnProgress func(job model.SubmissionJob)
	OnFinished func(job model.SubmissionJob, outcome Outcome)
}

// Handle owns one SubmissionJob's mutable state. The polling loop is the
// sole mutator; every mutation is gated on the liveness flag so a poll
// response resolving after Cancel touches nothing.
type Handle struct {
	mu      sync.Mutex
	job     model.SubmissionJob
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHandle wraps a freshly submitted job.
func NewHandle(job model.SubmissionJob) *Handle {
	job.State = model.JobStatePolling
	job.ServerStatus = model.StatusPending
	return &Handle{
		job:  job,
		done: make(chan struct{}),
	}
}

// Snapshot returns a copy of the job for status endpoints.
func (h *Handle) Snapshot() model.SubmissionJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job
}

// Cancel tears the loop down (the unmount path). The in-flight poll, if
// any, is abandoned and no further state mutation occurs.
func (h *Handle) Cancel() {
	h.mu.Lock()
	already := h.stopped
	h.stopped = true
	cancel := h.cancel
	h.mu.Unlock()
	if already {
		return
	}
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the loop exits, terminal or cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// mutate applies fn under the lock unless the handle was torn down.
// Reports whether the mutation happened.
func (h *Handle) mutate(fn func(*model.SubmissionJob)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	fn(&h.job)
	return true
}

// finish marks the terminal state and stops gating out future mutations.
func (h *Handle) finish(state model.JobState, fn func(*model.SubmissionJob)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	now := time.Now()
	h.job.State = state
	h.job.FinishedAt = &now
	if fn != nil {
		fn(&h.job)
	}
	h.stopped = true
	return true
}

// Poller runs the shared poll-until-terminal loop for both submission
// kinds. Fixed interval, single outstanding request: a new poll is not
// issued until the previous one returned, so statuses cannot regress.
type Poller struct {
	Interval time.Duration
}

// NewPoller creates a poller with the given fixed interval.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{Interval: interval}
}

// Start launches the polling goroutine for a job. Exactly one loop runs per
// handle; the handle's Cancel tears it down.
func (p *Poller) Start(ctx context.Context, h *Handle, fetch StatusFetcher, steps StepMapper, hooks Hooks) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	maxAttempts := h.job.MaxAttempts
	jobID := h.job.ID
	h.mu.Unlock()

	go func() {
		defer close(h.done)
		defer cancel()

		attempts := 0
		for {
			if attempts >= maxAttempts {
				// Soft timeout: proceed to the result view, let it render
				// the unresolved state.
				if h.finish(model.JobStateTimedOut, nil) && hooks.OnFinished != nil {
					log.Printf("[Poller] job %s soft timeout after %d attempts", jobID, attempts)
					hooks.OnFinished(h.Snapshot(), OutcomeTimedOut)
				}
				return
			}

			status, result, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				// Possibly transient: absorbed, the attempt still counts.
				log.Printf("[Poller] job %s poll #%d failed: %v", jobID, attempts+1, err)
			} else {
				switch status {
				case model.StatusCompleted:
					done := h.finish(model.JobStateCompleted, func(j *model.SubmissionJob) {
						j.ServerStatus = status
						j.Progress = 100
						j.Result = result
					})
					if done && hooks.OnFinished != nil {
						hooks.OnFinished(h.Snapshot(), OutcomeCompleted)
					}
					return
				case model.StatusFailed:
					// Display-visible failure: the result view renders it.
					done := h.finish(model.JobStateFailed, func(j *model.SubmissionJob) {
						j.ServerStatus = status
						j.Result = result
						j.Error = "evaluation failed"
					})
					if done && hooks.OnFinished != nil {
						hooks.OnFinished(h.Snapshot(), OutcomeFailed)
					}
					return
				default:
					step := steps(status, attempts)
					if !h.mutate(func(j *model.SubmissionJob) {
						j.ServerStatus = status
						j.Step = step
					}) {
						return
					}
				}
			}

			attempts++
			progress := attempts * 100 / maxAttempts
			if progress > 95 {
				progress = 95
			}
			if !h.mutate(func(j *model.SubmissionJob) {
				j.Attempts = attempts
				j.Progress = progress
			}) {
				return
			}
			if hooks.OnProgress != nil {
				hooks.OnProgress(h.Snapshot())
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.Interval):
			}
		}
	}()
}

// WritingSteps maps writing statuses to UI steps: pending stays at 0,
// processing ramps 0→1→2 as attempts pass 10 and 20.
func WritingSteps(status model.SubmissionStatus, attempts int) int {
	switch status {
	case model.StatusProcessing:
		step := attempts / 10
		if step > 2 {
			step = 2
		}
		return step
	default:
		return 0
	}
}

// SpeakingSteps maps speaking statuses to UI steps: transcription is its own
// stage before evaluation.
func SpeakingSteps(status model.SubmissionStatus, attempts int) int {
	switch status {
	case model.StatusTranscribing:
		return 1
	case model.StatusProcessing:
		return 2
	default:
		return 0
	}
}
