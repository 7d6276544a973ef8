package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/model"
)

// ExerciseTracker defines the exercise service operations the agent consumes.
type ExerciseTracker interface {
	GetExercise(ctx context.Context, id string) (*model.ExerciseContent, error)
	SubmitAnswers(ctx context.Context, submissionID string, answers []model.Answer) error
}

// ExerciseClient talks to the exercise-tracking service. Attempt recording
// is best-effort: callers log and continue on failure, it never blocks the
// AI evaluation workflow.
type ExerciseClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewExerciseClient creates a client for the exercise service.
func NewExerciseClient(cfg *config.BackendConfig) *ExerciseClient {
	return &ExerciseClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.ExerciseBaseURL, "/"),
		token:   cfg.Token,
	}
}

type exerciseEnvelope struct {
	Data model.ExerciseContent `json:"data"`
}

// GetExercise fetches an exercise with its sections for prompt-text and
// task classification.
func (c *ExerciseClient) GetExercise(ctx context.Context, id string) (*model.ExerciseContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/exercises/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result exerciseEnvelope
	if err := c.doRequest(req, &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

type submitAnswersRequest struct {
	Answers []model.Answer `json:"answers"`
}

// SubmitAnswers records the attempt against an exercise submission. AI
// evaluated exercise types pass an empty answers array.
func (c *ExerciseClient) SubmitAnswers(ctx context.Context, submissionID string, answers []model.Answer) error {
	if answers == nil {
		answers = []model.Answer{}
	}
	bodyBytes, err := json.Marshal(submitAnswersRequest{Answers: answers})
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	endpoint := fmt.Sprintf("%s/exercises/submissions/%s/submit", c.baseURL, submissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, nil)
}

func (c *ExerciseClient) doRequest(req *http.Request, result interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Exercise API] ✗ %s %s request failed: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("exercise service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Exercise API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.Path)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("exercise service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
