package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ieltsgo/agent/internal/client"
	"github.com/ieltsgo/agent/internal/config"
	"github.com/ieltsgo/agent/internal/recorder"
	ws "github.com/ieltsgo/agent/internal/websocket"
	"github.com/ieltsgo/agent/pkg/response"
)

// RecorderHandler exposes the capture state machine to the local UI.
type RecorderHandler struct {
	rec     *recorder.Recorder
	storage client.Uploader
	hub     *ws.Hub
	capture config.CaptureConfig
}

func NewRecorderHandler(rec *recorder.Recorder, storage client.Uploader, hub *ws.Hub, capture config.CaptureConfig) *RecorderHandler {
	return &RecorderHandler{
		rec:     rec,
		storage: storage,
		hub:     hub,
		capture: capture,
	}
}

// Start handles POST /api/recorder/start. The capture stream outlives the
// request, so acquisition runs on a background context.
func (h *RecorderHandler) Start(c *fiber.Ctx) error {
	if err := h.rec.Start(context.Background()); err != nil {
		return recorderError(c, err)
	}
	return response.OK(c, h.rec.Snapshot())
}

// Pause handles POST /api/recorder/pause
func (h *RecorderHandler) Pause(c *fiber.Ctx) error {
	if err := h.rec.Pause(); err != nil {
		return recorderError(c, err)
	}
	return response.OK(c, h.rec.Snapshot())
}

// Resume handles POST /api/recorder/resume
func (h *RecorderHandler) Resume(c *fiber.Ctx) error {
	if err := h.rec.Resume(); err != nil {
		return recorderError(c, err)
	}
	return response.OK(c, h.rec.Snapshot())
}

// Stop handles POST /api/recorder/stop
func (h *RecorderHandler) Stop(c *fiber.Ctx) error {
	if _, err := h.rec.Stop(); err != nil {
		return recorderError(c, err)
	}
	return response.OK(c, h.rec.Snapshot())
}

// Reset handles POST /api/recorder/reset
func (h *RecorderHandler) Reset(c *fiber.Ctx) error {
	h.rec.Reset()
	return response.OK(c, h.rec.Snapshot())
}

// Status handles GET /api/recorder/status
func (h *RecorderHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.rec.Snapshot())
}

// Upload handles POST /api/recorder/upload: pushes the finalized artifact
// through the storage service's two-phase presigned protocol and returns
// the durable audio URL.
func (h *RecorderHandler) Upload(c *fiber.Ctx) error {
	artifact := h.rec.Artifact()
	if artifact == nil {
		return response.ValidationError(c, "no finished recording to upload", nil)
	}

	audioURL, err := h.storage.UploadAudio(c.Context(), artifact.Reader(), h.capture.FileExtension, artifact.MIMEType, func(progress int) {
		h.hub.BroadcastUpload(progress)
	})
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"audioUrl": audioURL,
		"duration": int(artifact.Duration.Seconds()),
	})
}

func recorderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, recorder.ErrPermissionDenied):
		return response.PermissionError(c, err.Error())
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		return response.DeviceError(c, err.Error())
	case errors.Is(err, recorder.ErrInvalidState), errors.Is(err, recorder.ErrNoRecording):
		return response.InvalidState(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}
