package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ieltsgo/agent/internal/client"
	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/handler"
	"github.com/ieltsgo/agent/internal/model"
	"github.com/ieltsgo/agent/internal/recorder"
	"github.com/ieltsgo/agent/internal/service"
	ws "github.com/ieltsgo/agent/internal/websocket"
	"github.com/ieltsgo/agent/internal/worker"
)

const testToken = "test-platform-token"

// testApp holds all components needed for testing.
type testApp struct {
	app     *fiber.App
	rec     *recorder.Recorder
	device  *memDevice
	backend *mockBackend
	service *service.EvaluationService
}

// memDevice is an in-memory capture device producing a fixed chunk per
// acquired stream.
type memDevice struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (d *memDevice) Acquire(ctx context.Context, onChunk func([]byte)) (recorder.CaptureStream, error) {
	d.mu.Lock()
	d.acquired++
	d.mu.Unlock()
	onChunk([]byte("test-audio"))
	return &memStream{device: d}, nil
}

func (d *memDevice) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquired - d.released
}

type memStream struct {
	device *memDevice
	closed bool
}

func (s *memStream) Pause() error  { return nil }
func (s *memStream) Resume() error { return nil }
func (s *memStream) Close() error {
	if !s.closed {
		s.closed = true
		s.device.mu.Lock()
		s.device.released++
		s.device.mu.Unlock()
	}
	return nil
}

// mockBackend stands in for the AI, storage and exercise services.
type mockBackend struct {
	server *httptest.Server

	mu           sync.Mutex
	pollStatus   model.SubmissionStatus
	attempts     []string
	uploadedPuts int
}

func newMockBackend() *mockBackend {
	b := &mockBackend{pollStatus: model.StatusProcessing}
	mux := http.NewServeMux()

	mux.HandleFunc("/exercises/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/submit") {
			b.mu.Lock()
			b.attempts = append(b.attempts, r.URL.Path)
			b.mu.Unlock()
			fmt.Fprint(w, `{"data": {"submitted": true}}`)
			return
		}
		fmt.Fprint(w, `{"data": {
			"exercise": {"id": "ex-1", "title": "Writing Task 2: Opinion Essay", "instructions": "Discuss both views and give your opinion."},
			"sections": []
		}}`)
	})

	mux.HandleFunc("/ai/writing/submissions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"submission": {"id": "w-sub-1", "status": "pending"}}`)
	})
	mux.HandleFunc("/ai/writing/submissions/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.pollStatus
		b.mu.Unlock()
		fmt.Fprintf(w, `{"submission": {"id": "w-sub-1", "status": "%s"}}`, status)
	})
	mux.HandleFunc("/ai/speaking/submissions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"submission": {"id": "s-sub-1", "status": "pending"}}`)
	})
	mux.HandleFunc("/ai/speaking/submissions/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.pollStatus
		b.mu.Unlock()
		fmt.Fprintf(w, `{"submission": {"id": "s-sub-1", "status": "%s"}}`, status)
	})

	mux.HandleFunc("/storage/audio/upload-url", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"upload_url": "%s/presigned/obj", "audio_url": "https://cdn.example.com/obj.webm"}}`, b.server.URL)
	})
	mux.HandleFunc("/presigned/obj", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		b.mu.Lock()
		b.uploadedPuts++
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	b.server = httptest.NewServer(mux)
	return b
}

func (b *mockBackend) setPollStatus(status model.SubmissionStatus) {
	b.mu.Lock()
	b.pollStatus = status
	b.mu.Unlock()
}

func (b *mockBackend) recordedAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attempts)
}

// setupApp builds a Fiber app identical to main.go but over an in-memory
// capture device and a mock backend.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	backend := newMockBackend()
	t.Cleanup(backend.server.Close)

	backendCfg := &config.BackendConfig{
		AIBaseURL:       backend.server.URL,
		StorageBaseURL:  backend.server.URL,
		ExerciseBaseURL: backend.server.URL,
		Token:           testToken,
		TimeoutSeconds:  5,
	}
	captureCfg := config.CaptureConfig{
		MIMEType:      "audio/webm",
		FileExtension: ".webm",
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	aiClient := client.NewAIClient(backendCfg)
	storageClient := client.NewStorageClient(backendCfg)
	exerciseClient := client.NewExerciseClient(backendCfg)

	device := &memDevice{}
	rec := recorder.New(device, recorder.Options{
		MIMEType:     captureCfg.MIMEType,
		TickInterval: time.Hour,
	})
	t.Cleanup(rec.Close)

	poller := worker.NewPoller(time.Millisecond)
	evalService := service.NewEvaluationService(aiClient, exerciseClient, validate, poller, worker.Hooks{
		OnProgress: hub.BroadcastProgress,
		OnFinished: func(job model.SubmissionJob, outcome worker.Outcome) {
			hub.BroadcastComplete(job)
		},
	})
	t.Cleanup(evalService.Shutdown)

	recorderHandler := handler.NewRecorderHandler(rec, storageClient, hub, captureCfg)
	evaluationHandler := handler.NewEvaluationHandler(evalService, rec, validate, testToken)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"recorder": rec.Status(),
			"token":    true,
		})
	})

	api := app.Group("/api")

	rc := api.Group("/recorder")
	rc.Post("/start", recorderHandler.Start)
	rc.Post("/pause", recorderHandler.Pause)
	rc.Post("/resume", recorderHandler.Resume)
	rc.Post("/stop", recorderHandler.Stop)
	rc.Post("/reset", recorderHandler.Reset)
	rc.Post("/upload", recorderHandler.Upload)
	rc.Get("/status", recorderHandler.Status)

	ev := api.Group("/evaluations")
	ev.Post("/writing", evaluationHandler.SubmitWriting)
	ev.Post("/speaking", evaluationHandler.SubmitSpeaking)
	ev.Get("/:jobId", evaluationHandler.Status)

	return &testApp{
		app:     app,
		rec:     rec,
		device:  device,
		backend: backend,
		service: evalService,
	}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
