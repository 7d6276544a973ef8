package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/model"
)

func backendConfig(baseURL string) *config.BackendConfig {
	return &config.BackendConfig{
		AIBaseURL:      baseURL,
		TimeoutSeconds: 5,
		Token:          "test-token",
	}
}

func TestSubmitWriting(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody model.WritingSubmissionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ai/writing/submissions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"submission": {"id": "sub-1", "status": "pending"}}`)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	resp, err := c.SubmitWriting(context.Background(), &model.WritingSubmissionRequest{
		TaskType:       model.TaskType2,
		TaskPromptText: "Discuss both views",
		EssayText:      "essay body",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if resp.Submission.ID != "sub-1" {
		t.Errorf("expected submission id sub-1, got %s", resp.Submission.ID)
	}
	if resp.Submission.Status != model.StatusPending {
		t.Errorf("expected pending status, got %s", resp.Submission.Status)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if gotBody.TaskType != model.TaskType2 || gotBody.EssayText != "essay body" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestSubmitSpeakingMultipart(t *testing.T) {
	var gotFields map[string]string
	var gotAudio []byte
	var gotFilename, gotPartType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/speaking/submissions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			t.Fatalf("missing audio_file part: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotPartType = header.Header.Get("Content-Type")
		buf := new(bytes.Buffer)
		buf.ReadFrom(file)
		gotAudio = buf.Bytes()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"submission": {"id": "sub-2", "status": "pending"}}`)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	resp, err := c.SubmitSpeaking(context.Background(), &model.SpeakingSubmissionRequest{
		PartNumber:           2,
		TaskPromptText:       "Describe a memorable trip",
		AudioDurationSeconds: 112,
		ExerciseID:           "ex-9",
	}, bytes.NewReader([]byte("raw-webm")), "answer.webm", "audio/webm")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if resp.Submission.ID != "sub-2" {
		t.Errorf("expected submission id sub-2, got %s", resp.Submission.ID)
	}
	want := map[string]string{
		"part_number":            "2",
		"task_prompt_text":       "Describe a memorable trip",
		"audio_duration_seconds": "112",
		"exercise_id":            "ex-9",
	}
	for k, v := range want {
		if gotFields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, gotFields[k])
		}
	}
	if string(gotAudio) != "raw-webm" {
		t.Errorf("expected audio bytes, got %q", gotAudio)
	}
	if gotFilename != "answer.webm" {
		t.Errorf("expected filename answer.webm, got %s", gotFilename)
	}
	if gotPartType != "audio/webm" {
		t.Errorf("expected part content type audio/webm, got %s", gotPartType)
	}
}

func TestListWritingSubmissionsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" || r.URL.Query().Get("offset") != "0" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"submissions": [{"id": "a"}, {"id": "b"}]}`)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	list, err := c.ListWritingSubmissions(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list.Submissions) != 2 {
		t.Errorf("expected 2 submissions, got %d", len(list.Submissions))
	}
}

func TestGetWritingSubmissionWithEvaluation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/writing/submissions/sub-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"submission": {"id": "sub-1", "status": "completed"},
			"evaluation": {"id": "eval-1", "submission_id": "sub-1", "overall_band_score": 7.5}
		}`)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	resp, err := c.GetWritingSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !resp.Submission.Status.IsTerminal() {
		t.Errorf("expected terminal status, got %s", resp.Submission.Status)
	}
	if resp.Evaluation == nil || resp.Evaluation.OverallBandScore != 7.5 {
		t.Errorf("expected evaluation with band 7.5, got %+v", resp.Evaluation)
	}
}

func TestDoRequestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "validation failed"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	_, err := c.SubmitWriting(context.Background(), &model.WritingSubmissionRequest{})
	if err == nil {
		t.Fatal("expected error on 422 response")
	}
	if IsTimeout(err) {
		t.Error("status errors must not classify as timeouts")
	}
}

func TestIsTimeout(t *testing.T) {
	if IsTimeout(nil) {
		t.Error("nil is not a timeout")
	}
	if IsTimeout(errors.New("plain error")) {
		t.Error("plain errors are not timeouts")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded is a timeout")
	}
	if !IsTimeout(fmt.Errorf("request failed: %w", context.DeadlineExceeded)) {
		t.Error("wrapped deadline exceeded is a timeout")
	}

	// A stalled server trips the client timeout.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewAIClient(backendConfig(server.URL))
	c.httpClient.Timeout = 20 * time.Millisecond
	_, err := c.GetWritingSubmission(context.Background(), "sub-1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected timeout classification, got %v", err)
	}
}
