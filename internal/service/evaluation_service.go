package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ieltsgo/agent/internal/client"
	"github.com/ieltsgo/agent/internal/model"
	"github.com/ieltsgo/agent/internal/worker"
)

// Timeout-recovery window: a submission created this recently is assumed to
// be the one whose submit response the client never saw.
const (
	recentSubmissionWindow = 10 * time.Second
	recentSubmissionLimit  = 5
)

// EvaluationService runs the AI submission workflow for both kinds:
// validate, submit, record the attempt best-effort, then hand the job to a
// polling loop until a terminal status, soft timeout or teardown.
type EvaluationService struct {
	ai        client.Evaluator
	exercises client.ExerciseTracker
	validate  *validator.Validate
	poller    *worker.Poller
	hooks     worker.Hooks

	mu     sync.Mutex
	jobs   map[string]*worker.Handle
	active *worker.Handle
}

// NewEvaluationService wires the workflow's collaborators. hooks receive
// job progress and terminal events for UI broadcast.
func NewEvaluationService(ai client.Evaluator, exercises client.ExerciseTracker, validate *validator.Validate, poller *worker.Poller, hooks worker.Hooks) *EvaluationService {
	return &EvaluationService{
		ai:        ai,
		exercises: exercises,
		validate:  validate,
		poller:    poller,
		hooks:     hooks,
		jobs:      make(map[string]*worker.Handle),
	}
}

// SubmitWritingInput is the caller's payload for a writing evaluation.
type SubmitWritingInput struct {
	ExerciseID       string
	SubmissionID     string // exercise-tracking attempt, recorded best-effort
	EssayText        string
	TimeSpentSeconds int
}

// SubmitSpeakingInput is the caller's payload for a speaking evaluation.
type SubmitSpeakingInput struct {
	ExerciseID      string
	SubmissionID    string
	Audio           []byte
	Filename        string
	ContentType     string
	DurationSeconds int
}

// SubmitWriting validates the essay against the exercise's task type and
// submits it for evaluation. On success the returned job is already being
// polled. A timeout-class submit failure first attempts recent-submission
// reconciliation before surfacing a SubmissionError.
func (s *EvaluationService) SubmitWriting(ctx context.Context, in *SubmitWritingInput) (model.SubmissionJob, error) {
	var job model.SubmissionJob

	content, err := s.exercises.GetExercise(ctx, in.ExerciseID)
	if err != nil {
		return job, fmt.Errorf("failed to load exercise: %w", err)
	}

	prompt := strings.TrimSpace(content.PromptText())
	if prompt == "" {
		return job, &ValidationError{Message: "task prompt is required"}
	}
	essay := strings.TrimSpace(in.EssayText)
	if essay == "" {
		return job, &ValidationError{Message: "essay text is required"}
	}

	taskType := ClassifyTaskType(content.Exercise.Title)
	wordCount := CountWords(essay)
	if wordCount < taskType.MinWords() {
		return job, &ValidationError{
			Message: fmt.Sprintf("word count %d is below the %d-word minimum for %s", wordCount, taskType.MinWords(), taskType),
		}
	}

	req := &model.WritingSubmissionRequest{
		TaskType:         taskType,
		TaskPromptText:   prompt,
		EssayText:        essay,
		TimeSpentSeconds: in.TimeSpentSeconds,
		ExerciseID:       in.ExerciseID,
	}
	if err := s.validate.Struct(req); err != nil {
		return job, &ValidationError{Message: err.Error()}
	}

	resp, err := s.ai.SubmitWriting(ctx, req)
	if err != nil {
		if client.IsTimeout(err) {
			if adopted := s.recoverWriting(ctx); adopted != nil {
				log.Printf("[Evaluation] submit timed out but found recent submission %s, adopting it", adopted.ID)
				resp = &model.WritingSubmissionResponse{Submission: *adopted}
				err = nil
			}
		}
		if err != nil {
			s.recordAttempt(ctx, in.SubmissionID)
			return job, &SubmissionError{Err: err, AttemptRecorded: in.SubmissionID != ""}
		}
	}

	s.recordAttempt(ctx, in.SubmissionID)
	return s.startJob(model.KindWriting, resp.Submission.ID, in.ExerciseID, in.SubmissionID), nil
}

// SubmitSpeaking validates the recorded answer and submits it for
// transcription and evaluation as a multipart request.
func (s *EvaluationService) SubmitSpeaking(ctx context.Context, in *SubmitSpeakingInput) (model.SubmissionJob, error) {
	var job model.SubmissionJob

	if len(in.Audio) == 0 {
		return job, &ValidationError{Message: "audio recording is required"}
	}

	content, err := s.exercises.GetExercise(ctx, in.ExerciseID)
	if err != nil {
		return job, fmt.Errorf("failed to load exercise: %w", err)
	}

	prompt := strings.TrimSpace(content.PromptText())
	if prompt == "" {
		return job, &ValidationError{Message: "task prompt is required"}
	}

	req := &model.SpeakingSubmissionRequest{
		PartNumber:           ClassifyPartNumber(content.Exercise.Title),
		TaskPromptText:       prompt,
		AudioDurationSeconds: in.DurationSeconds,
		ExerciseID:           in.ExerciseID,
	}
	if err := s.validate.Struct(req); err != nil {
		return job, &ValidationError{Message: err.Error()}
	}

	filename := in.Filename
	if filename == "" {
		filename = "answer.webm"
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}

	resp, err := s.ai.SubmitSpeaking(ctx, req, bytes.NewReader(in.Audio), filename, contentType)
	if err != nil {
		if client.IsTimeout(err) {
			if adopted := s.recoverSpeaking(ctx); adopted != nil {
				log.Printf("[Evaluation] submit timed out but found recent submission %s, adopting it", adopted.ID)
				resp = &model.SpeakingSubmissionResponse{Submission: *adopted}
				err = nil
			}
		}
		if err != nil {
			s.recordAttempt(ctx, in.SubmissionID)
			return job, &SubmissionError{Err: err, AttemptRecorded: in.SubmissionID != ""}
		}
	}

	s.recordAttempt(ctx, in.SubmissionID)
	return s.startJob(model.KindSpeaking, resp.Submission.ID, in.ExerciseID, in.SubmissionID), nil
}

// Job returns a snapshot of a tracked job.
func (s *EvaluationService) Job(id string) (model.SubmissionJob, bool) {
	s.mu.Lock()
	h, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return model.SubmissionJob{}, false
	}
	return h.Snapshot(), true
}

// Shutdown tears down any active polling loop (the unmount path).
func (s *EvaluationService) Shutdown() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
}

// startJob registers the job and launches its polling loop. Starting a new
// submission tears down any previous loop: exactly one loop is active.
func (s *EvaluationService) startJob(kind model.SubmissionKind, submissionID, exerciseID, attemptID string) model.SubmissionJob {
	h := worker.NewHandle(model.SubmissionJob{
		ID:           submissionID,
		Kind:         kind,
		ExerciseID:   exerciseID,
		SubmissionID: attemptID,
		MaxAttempts:  kind.MaxPollAttempts(),
		CreatedAt:    time.Now(),
	})

	s.mu.Lock()
	if s.active != nil {
		s.active.Cancel()
	}
	s.active = h
	s.jobs[submissionID] = h
	s.mu.Unlock()

	var fetch worker.StatusFetcher
	var steps worker.StepMapper
	if kind == model.KindSpeaking {
		fetch = func(ctx context.Context) (model.SubmissionStatus, interface{}, error) {
			resp, err := s.ai.GetSpeakingSubmission(ctx, submissionID)
			if err != nil {
				return "", nil, err
			}
			return resp.Submission.Status, resp, nil
		}
		steps = worker.SpeakingSteps
	} else {
		fetch = func(ctx context.Context) (model.SubmissionStatus, interface{}, error) {
			resp, err := s.ai.GetWritingSubmission(ctx, submissionID)
			if err != nil {
				return "", nil, err
			}
			return resp.Submission.Status, resp, nil
		}
		steps = worker.WritingSteps
	}

	// The loop outlives the submit request; it is torn down by Shutdown, a
	// newer submission, or its own terminal/timeout exit.
	s.poller.Start(context.Background(), h, fetch, steps, s.hooks)
	return h.Snapshot()
}

// recoverWriting checks whether a submit that timed out client-side
// actually landed: any of the most recent submissions created within the
// window is adopted as the in-flight job.
func (s *EvaluationService) recoverWriting(ctx context.Context) *model.WritingSubmission {
	list, err := s.ai.ListWritingSubmissions(ctx, recentSubmissionLimit, 0)
	if err != nil {
		log.Printf("[Evaluation] recent-submission lookup failed: %v", err)
		return nil
	}
	for i := range list.Submissions {
		sub := &list.Submissions[i]
		if time.Since(sub.SubmittedAt) < recentSubmissionWindow {
			return sub
		}
	}
	return nil
}

func (s *EvaluationService) recoverSpeaking(ctx context.Context) *model.SpeakingSubmission {
	list, err := s.ai.ListSpeakingSubmissions(ctx, recentSubmissionLimit, 0)
	if err != nil {
		log.Printf("[Evaluation] recent-submission lookup failed: %v", err)
		return nil
	}
	for i := range list.Submissions {
		sub := &list.Submissions[i]
		if time.Since(sub.SubmittedAt) < recentSubmissionWindow {
			return sub
		}
	}
	return nil
}

// recordAttempt records the exercise attempt with an empty answers array.
// Best-effort: failure never blocks the evaluation workflow.
func (s *EvaluationService) recordAttempt(ctx context.Context, submissionID string) {
	if submissionID == "" {
		return
	}
	if err := s.exercises.SubmitAnswers(ctx, submissionID, nil); err != nil {
		log.Printf("[Evaluation] failed to record exercise attempt %s: %v", submissionID, err)
	}
}

// CountWords counts whitespace-separated words, matching the UI's counter.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ClassifyTaskType derives the writing task type from the exercise title.
// Anything not explicitly marked task 1 is treated as task 2.
func ClassifyTaskType(title string) model.TaskType {
	t := strings.ToLower(title)
	if strings.Contains(t, "task 1") || strings.Contains(t, "task1") {
		return model.TaskType1
	}
	return model.TaskType2
}

// ClassifyPartNumber derives the speaking part from the exercise title,
// defaulting to part 1.
func ClassifyPartNumber(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "part 2"), strings.Contains(t, "part2"):
		return 2
	case strings.Contains(t, "part 3"), strings.Contains(t, "part3"):
		return 3
	default:
		return 1
	}
}
