package model

import "time"

// SubmissionJob tracks one in-flight AI evaluation request from the agent's
// point of view. The polling loop is the sole mutator of ServerStatus,
// Attempts, Progress and Step after submission; handlers read snapshots.
type SubmissionJob struct {
	ID           string           `json:"jobId"` // server-assigned submission id
	Kind         SubmissionKind   `json:"kind"`
	ExerciseID   string           `json:"exerciseId,omitempty"`
	SubmissionID string           `json:"submissionId,omitempty"` // exercise-tracking attempt id
	State        JobState         `json:"state"`
	ServerStatus SubmissionStatus `json:"serverStatus"`
	Attempts     int              `json:"attempts"`
	MaxAttempts  int              `json:"maxAttempts"`
	Progress     int              `json:"progress"` // 0-95 while polling, 100 on completion
	Step         int              `json:"step"`     // UI step index derived from server status
	Result       interface{}      `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	FinishedAt   *time.Time       `json:"finishedAt,omitempty"`
}

// Terminal reports whether the job left the polling loop.
func (j *SubmissionJob) Terminal() bool {
	return j.State != JobStatePolling
}
