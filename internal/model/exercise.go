package model

// Exercise is the subset of the exercise service's record the agent needs:
// the title drives task-type / part-number classification, the instructions
// and description are prompt-text fallbacks.
type Exercise struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Instructions     string `json:"instructions,omitempty"`
	ExerciseType     string `json:"exercise_type,omitempty"`
	TimeLimitMinutes int    `json:"time_limit_minutes,omitempty"`
}

// ExerciseSection is one section of an exercise. Section instructions take
// precedence over exercise-level instructions as the evaluation prompt.
type ExerciseSection struct {
	Section struct {
		ID           string `json:"id"`
		Instructions string `json:"instructions,omitempty"`
	} `json:"section"`
}

// ExerciseContent is the envelope of GET /exercises/{id}.
type ExerciseContent struct {
	Exercise Exercise          `json:"exercise"`
	Sections []ExerciseSection `json:"sections"`
}

// PromptText resolves the evaluation prompt: first section instructions,
// then exercise instructions, then description.
func (c *ExerciseContent) PromptText() string {
	if len(c.Sections) > 0 && c.Sections[0].Section.Instructions != "" {
		return c.Sections[0].Section.Instructions
	}
	if c.Exercise.Instructions != "" {
		return c.Exercise.Instructions
	}
	return c.Exercise.Description
}

// Answer is one entry of the answers array sent to the exercise-tracking
// service. AI-evaluated exercise types submit an empty array.
type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	TextAnswer       string `json:"text_answer,omitempty"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}
