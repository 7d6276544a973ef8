package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/model"
)

func exerciseConfig(baseURL string) *config.BackendConfig {
	return &config.BackendConfig{
		ExerciseBaseURL: baseURL,
		Token:           "test-token",
		TimeoutSeconds:  5,
	}
}

func TestGetExercise(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exercises/ex-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {
			"exercise": {"id": "ex-1", "title": "Writing Task 2: Essay", "instructions": "Discuss both views."},
			"sections": [{"section": {"id": "sec-1", "instructions": "Write at least 250 words."}}]
		}}`)
	}))
	defer server.Close()

	c := NewExerciseClient(exerciseConfig(server.URL))
	content, err := c.GetExercise(context.Background(), "ex-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if content.Exercise.Title != "Writing Task 2: Essay" {
		t.Errorf("unexpected title: %s", content.Exercise.Title)
	}
	// Section instructions win over exercise-level instructions.
	if got := content.PromptText(); got != "Write at least 250 words." {
		t.Errorf("unexpected prompt text: %q", got)
	}
}

func TestPromptTextFallbacks(t *testing.T) {
	content := &model.ExerciseContent{
		Exercise: model.Exercise{
			Instructions: "exercise-level",
			Description:  "description-level",
		},
	}
	if got := content.PromptText(); got != "exercise-level" {
		t.Errorf("expected exercise instructions, got %q", got)
	}

	content.Exercise.Instructions = ""
	if got := content.PromptText(); got != "description-level" {
		t.Errorf("expected description fallback, got %q", got)
	}
}

func TestSubmitAnswersEmptyArray(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/exercises/submissions/att-1/submit" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"submitted": true}}`)
	}))
	defer server.Close()

	c := NewExerciseClient(exerciseConfig(server.URL))
	if err := c.SubmitAnswers(context.Background(), "att-1", nil); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// nil answers serialize as an empty array, never null.
	if gotBody != `{"answers":[]}` {
		t.Errorf("expected empty answers array, got %s", gotBody)
	}
}

func TestSubmitAnswersServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "submission not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewExerciseClient(exerciseConfig(server.URL))
	if err := c.SubmitAnswers(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error on 404")
	}
}
