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
)

// Upload progress milestones reported to the UI: the write capability is
// obtained, then the write itself completes.
const (
	uploadProgressTicket = 30
	uploadProgressDone   = 100
)

// Uploader defines the storage service operations the agent consumes.
type Uploader interface {
	UploadAudio(ctx context.Context, audio io.Reader, fileExtension, contentType string, onProgress func(int)) (string, error)
}

// StorageClient uploads audio artifacts through the storage service's
// two-phase presigned URL protocol: phase 1 obtains a time-limited write
// capability, phase 2 performs a direct PUT against it. The returned
// audio_url is only valid for downstream submission once phase 2 succeeds.
type StorageClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewStorageClient creates a client for the storage service.
func NewStorageClient(cfg *config.BackendConfig) *StorageClient {
	return &StorageClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.StorageBaseURL, "/"),
		token:   cfg.Token,
	}
}

type uploadURLRequest struct {
	FileExtension string `json:"file_extension"`
	ContentType   string `json:"content_type"`
}

type uploadTicket struct {
	UploadURL string `json:"upload_url"`
	AudioURL  string `json:"audio_url"`
}

type uploadURLResponse struct {
	Data uploadTicket `json:"data"`
}

// UploadAudio runs both phases and returns the durable audio URL for
// submission. onProgress, when non-nil, receives coarse percentage updates.
func (c *StorageClient) UploadAudio(ctx context.Context, audio io.Reader, fileExtension, contentType string, onProgress func(int)) (string, error) {
	ticket, err := c.createUploadURL(ctx, fileExtension, contentType)
	if err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(uploadProgressTicket)
	}

	if err := c.putObject(ctx, ticket.UploadURL, audio, contentType); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(uploadProgressDone)
	}

	return ticket.AudioURL, nil
}

// createUploadURL is phase 1: POST /storage/audio/upload-url.
func (c *StorageClient) createUploadURL(ctx context.Context, fileExtension, contentType string) (*uploadTicket, error) {
	bodyBytes, err := json.Marshal(uploadURLRequest{
		FileExtension: fileExtension,
		ContentType:   contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/storage/audio/upload-url", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Storage API] ✗ upload-url request failed: %v", err)
		return nil, fmt.Errorf("storage service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result uploadURLResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Data.UploadURL == "" || result.Data.AudioURL == "" {
		return nil, fmt.Errorf("storage service returned incomplete upload ticket")
	}
	return &result.Data, nil
}

// putObject is phase 2: a direct PUT of the raw binary against the presigned
// URL. The URL embeds its own credentials; no Authorization header is sent.
func (c *StorageClient) putObject(ctx context.Context, uploadURL string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Storage API] ✗ presigned PUT failed: %v", err)
		return fmt.Errorf("audio upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("audio upload rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	log.Printf("[Storage API] ← %d PUT presigned object", resp.StatusCode)
	return nil
}
