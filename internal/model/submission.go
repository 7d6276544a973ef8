package model

import "time"

// WritingSubmissionRequest is the JSON body for POST /ai/writing/submissions.
// TaskPromptID is omitted when the prompt is sent as free text; the AI
// service creates a prompt record from TaskPromptText.
type WritingSubmissionRequest struct {
	TaskType         TaskType `json:"task_type" validate:"required,oneof=task1 task2"`
	TaskPromptID     *string  `json:"task_prompt_id,omitempty"`
	TaskPromptText   string   `json:"task_prompt_text" validate:"required"`
	EssayText        string   `json:"essay_text" validate:"required"`
	TimeSpentSeconds int      `json:"time_spent_seconds,omitempty"`
	ExerciseID       string   `json:"exercise_id,omitempty"`
}

// WritingSubmission mirrors the AI service's writing submission record.
type WritingSubmission struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	TaskType       TaskType         `json:"task_type"`
	TaskPromptText string           `json:"task_prompt_text"`
	EssayText      string           `json:"essay_text"`
	WordCount      int              `json:"word_count"`
	Status         SubmissionStatus `json:"status"`
	ExerciseID     string           `json:"exercise_id,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// WritingEvaluation is the AI grading result for a writing submission.
type WritingEvaluation struct {
	ID                     string   `json:"id"`
	SubmissionID           string   `json:"submission_id"`
	OverallBandScore       float64  `json:"overall_band_score"`
	TaskAchievementScore   float64  `json:"task_achievement_score"`
	CoherenceCohesionScore float64  `json:"coherence_cohesion_score"`
	LexicalResourceScore   float64  `json:"lexical_resource_score"`
	GrammarAccuracyScore   float64  `json:"grammar_accuracy_score"`
	DetailedFeedback       string   `json:"detailed_feedback"`
	Strengths              []string `json:"strengths,omitempty"`
	Weaknesses             []string `json:"weaknesses,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// WritingSubmissionResponse is the envelope returned by the writing
// submission endpoints. Evaluation is present once status is completed.
type WritingSubmissionResponse struct {
	Submission WritingSubmission  `json:"submission"`
	Evaluation *WritingEvaluation `json:"evaluation,omitempty"`
}

// WritingSubmissionList is the envelope of GET /ai/writing/submissions.
type WritingSubmissionList struct {
	Submissions []WritingSubmission `json:"submissions"`
}

// SpeakingSubmissionRequest carries the multipart form fields for
// POST /ai/speaking/submissions. The audio binary travels alongside as the
// audio_file part.
type SpeakingSubmissionRequest struct {
	PartNumber           int     `json:"part_number" validate:"required,min=1,max=3"`
	TaskPromptID         *string `json:"task_prompt_id,omitempty"`
	TaskPromptText       string  `json:"task_prompt_text" validate:"required"`
	AudioDurationSeconds int     `json:"audio_duration_seconds,omitempty"`
	AudioFormat          string  `json:"audio_format,omitempty"`
	ExerciseID           string  `json:"exercise_id,omitempty"`
}

// SpeakingSubmission mirrors the AI service's speaking submission record.
type SpeakingSubmission struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"user_id"`
	PartNumber           int              `json:"part_number"`
	TaskPromptText       string           `json:"task_prompt_text"`
	AudioURL             string           `json:"audio_url"`
	AudioDurationSeconds int              `json:"audio_duration_seconds"`
	TranscriptText       string           `json:"transcript_text,omitempty"`
	Status               SubmissionStatus `json:"status"`
	ExerciseID           string           `json:"exercise_id,omitempty"`
	SubmittedAt          time.Time        `json:"submitted_at"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// SpeakingEvaluation is the AI grading result for a speaking submission.
type SpeakingEvaluation struct {
	ID                    string    `json:"id"`
	SubmissionID          string    `json:"submission_id"`
	OverallBandScore      float64   `json:"overall_band_score"`
	FluencyCoherenceScore float64   `json:"fluency_coherence_score"`
	LexicalResourceScore  float64   `json:"lexical_resource_score"`
	GrammarAccuracyScore  float64   `json:"grammar_accuracy_score"`
	PronunciationScore    float64   `json:"pronunciation_score"`
	DetailedFeedback      string    `json:"detailed_feedback,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// SpeakingSubmissionResponse is the envelope returned by the speaking
// submission endpoints.
type SpeakingSubmissionResponse struct {
	Submission SpeakingSubmission  `json:"submission"`
	Evaluation *SpeakingEvaluation `json:"evaluation,omitempty"`
}

// SpeakingSubmissionList is the envelope of GET /ai/speaking/submissions.
type SpeakingSubmissionList struct {
	Submissions []SpeakingSubmission `json:"submissions"`
}
