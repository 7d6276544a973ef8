package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/model"
)

// Evaluator defines the AI evaluation service operations the agent consumes.
type Evaluator interface {
	SubmitWriting(ctx context.Context, req *model.WritingSubmissionRequest) (*model.WritingSubmissionResponse, error)
	GetWritingSubmission(ctx context.Context, id string) (*model.WritingSubmissionResponse, error)
	ListWritingSubmissions(ctx context.Context, limit, offset int) (*model.WritingSubmissionList, error)
	SubmitSpeaking(ctx context.Context, req *model.SpeakingSubmissionRequest, audio io.Reader, filename, contentType string) (*model.SpeakingSubmissionResponse, error)
	GetSpeakingSubmission(ctx context.Context, id string) (*model.SpeakingSubmissionResponse, error)
	ListSpeakingSubmissions(ctx context.Context, limit, offset int) (*model.SpeakingSubmissionList, error)
}

// AIClient implements Evaluator against the AI evaluation service.
type AIClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewAIClient creates a client for the AI evaluation service.
func NewAIClient(cfg *config.BackendConfig) *AIClient {
	return &AIClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.AIBaseURL, "/"),
		token:   cfg.Token,
	}
}

// SubmitWriting submits an essay for evaluation.
func (c *AIClient) SubmitWriting(ctx context.Context, req *model.WritingSubmissionRequest) (*model.WritingSubmissionResponse, error) {
	var result model.WritingSubmissionResponse
	if err := c.post(ctx, "/ai/writing/submissions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetWritingSubmission fetches one writing submission with its evaluation.
func (c *AIClient) GetWritingSubmission(ctx context.Context, id string) (*model.WritingSubmissionResponse, error) {
	var result model.WritingSubmissionResponse
	if err := c.get(ctx, fmt.Sprintf("/ai/writing/submissions/%s", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListWritingSubmissions returns the caller's most recent writing
// submissions, newest first. Used for timeout-recovery reconciliation.
func (c *AIClient) ListWritingSubmissions(ctx context.Context, limit, offset int) (*model.WritingSubmissionList, error) {
	var result model.WritingSubmissionList
	endpoint := fmt.Sprintf("/ai/writing/submissions?limit=%d&offset=%d", limit, offset)
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitSpeaking submits a recorded answer for transcription and evaluation.
// The audio travels as the audio_file multipart part.
func (c *AIClient) SubmitSpeaking(ctx context.Context, req *model.SpeakingSubmissionRequest, audio io.Reader, filename, contentType string) (*model.SpeakingSubmissionResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("part_number", fmt.Sprintf("%d", req.PartNumber))
	_ = writer.WriteField("task_prompt_text", req.TaskPromptText)
	if req.TaskPromptID != nil {
		_ = writer.WriteField("task_prompt_id", *req.TaskPromptID)
	}
	if req.AudioDurationSeconds > 0 {
		_ = writer.WriteField("audio_duration_seconds", fmt.Sprintf("%d", req.AudioDurationSeconds))
	}
	if req.ExerciseID != "" {
		_ = writer.WriteField("exercise_id", req.ExerciseID)
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio_file"; filename="%s"`, filename))
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to buffer audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/speaking/submissions", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var result model.SpeakingSubmissionResponse
	if err := c.doRequest(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSpeakingSubmission fetches one speaking submission with its evaluation.
func (c *AIClient) GetSpeakingSubmission(ctx context.Context, id string) (*model.SpeakingSubmissionResponse, error) {
	var result model.SpeakingSubmissionResponse
	if err := c.get(ctx, fmt.Sprintf("/ai/speaking/submissions/%s", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSpeakingSubmissions returns the caller's most recent speaking
// submissions, newest first.
func (c *AIClient) ListSpeakingSubmissions(ctx context.Context, limit, offset int) (*model.SpeakingSubmissionList, error) {
	var result model.SpeakingSubmissionList
	endpoint := fmt.Sprintf("/ai/speaking/submissions?limit=%d&offset=%d", limit, offset)
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *AIClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *AIClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *AIClient) doRequest(req *http.Request, result interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[AI API] ✗ %s %s request failed: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("ai service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[AI API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.Path)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ai service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsTimeout reports whether err is a timeout-class transport failure: the
// request may have reached the server even though no response arrived, so
// the submit path attempts recent-submission reconciliation before failing.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
