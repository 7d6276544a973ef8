package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypeTick     = "tick"
	WSMessageTypeUpload   = "upload"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports polling progress for a submission job.
type WSProgressMessage struct {
	Type     string           `json:"type"`
	JobID    string           `json:"jobId"`
	Progress int              `json:"progress"`
	Status   SubmissionStatus `json:"status"`
	Step     int              `json:"step"`
}

// WSCompleteMessage signals that the job reached a terminal state and the UI
// should navigate to the result view. Result is nil on soft timeout.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	State  JobState    `json:"state"`
	Result interface{} `json:"result,omitempty"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSUploadMessage reports artifact upload progress to recorder subscribers.
type WSUploadMessage struct {
	Type     string `json:"type"`
	Progress int    `json:"progress"`
}

// WSTickMessage reports recorder elapsed time once per second.
type WSTickMessage struct {
	Type    string `json:"type"`
	Elapsed int    `json:"elapsed"`
	Status  string `json:"status"`
}
