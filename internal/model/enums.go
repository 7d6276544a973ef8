package model

// SubmissionKind distinguishes the two AI-evaluated exercise flows
type SubmissionKind string

const (
	KindWriting  SubmissionKind = "writing"
	KindSpeaking SubmissionKind = "speaking"
)

// SubmissionStatus is the server-side status of an AI evaluation request.
// "transcribing" is reported for speaking submissions only.
type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusTranscribing SubmissionStatus = "transcribing"
	StatusProcessing   SubmissionStatus = "processing"
	StatusCompleted    SubmissionStatus = "completed"
	StatusFailed       SubmissionStatus = "failed"
)

// IsTerminal reports whether polling stops at this status.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskType classifies writing exercises. Task 1 essays require at least 150
// words, task 2 essays at least 250.
type TaskType string

const (
	TaskType1 TaskType = "task1"
	TaskType2 TaskType = "task2"
)

// MinWords returns the minimum essay word count for the task type.
func (t TaskType) MinWords() int {
	if t == TaskType1 {
		return 150
	}
	return 250
}

// JobState is the client-side lifecycle of a SubmissionJob.
type JobState string

const (
	JobStatePolling   JobState = "polling"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed_out"
)

// Poll attempt caps per submission kind. Speaking allows more time because
// transcription precedes evaluation.
const (
	MaxPollAttemptsWriting  = 60
	MaxPollAttemptsSpeaking = 72
)

// MaxPollAttempts returns the attempt cap for the kind.
func (k SubmissionKind) MaxPollAttempts() int {
	if k == KindSpeaking {
		return MaxPollAttemptsSpeaking
	}
	return MaxPollAttemptsWriting
}
