package service

import "fmt"

// ValidationError blocks a submission before any network call. Always
// locally recoverable: the user fixes the input and retries.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SubmissionError reports a failed submit call for which no recent-
// submission recovery was found. The exercise attempt is still recorded
// best-effort, and the message says so.
type SubmissionError struct {
	Err             error
	AttemptRecorded bool
}

func (e *SubmissionError) Error() string {
	if e.AttemptRecorded {
		return fmt.Sprintf("%v (exercise attempt recorded)", e.Err)
	}
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
